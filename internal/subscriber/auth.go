// Package subscriber resolves named subscriber queries into batches of
// subscriber ids, and fetches per-subscriber profile data for rendering.
// Grounded on services/auth_service.py (AuthMockService) and
// services/subscriber_resolver.py/subscriber_fetchers.py.
package subscriber

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// UserData is the profile a renderer merges into a WorkUnit's context.
// Mirrors schemas/auth_service.py's UserData.
type UserData struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Avatar    *string    `json:"avatar,omitempty"`
	URL       *string    `json:"url,omitempty"`
}

// AuthClient is the external identity directory collaborator: a user
// directory queryable by birth month/day with page/page-size pagination,
// plus per-id profile lookup.
type AuthClient interface {
	GetUsers(ctx context.Context, birthMonth, birthDay int, page, pageSize int) ([]string, error)
	GetUserData(ctx context.Context, userID string) (UserData, error)
}

// MockAuthClient stands in for a real identity service, exactly as
// AuthMockService does: a fixed population of synthetic users generated
// at construction, queried in memory.
type MockAuthClient struct {
	users []mockUser
}

type mockUser struct {
	id        string
	birthDate time.Time
}

func NewMockAuthClient() *MockAuthClient {
	c := &MockAuthClient{}
	for i := 1; i <= 1000; i++ {
		year := 1990 + i%30
		month := rand.Intn(12) + 1 //nolint:gosec
		day := rand.Intn(28) + 1   //nolint:gosec
		c.users = append(c.users, mockUser{
			id:        fmt.Sprintf("user-%04d", i),
			birthDate: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		})
	}
	return c
}

func (c *MockAuthClient) GetUsers(_ context.Context, birthMonth, birthDay, page, pageSize int) ([]string, error) {
	if birthMonth != 0 && (birthMonth < 1 || birthMonth > 12) {
		return nil, fmt.Errorf("invalid birth month %d", birthMonth)
	}
	if birthDay != 0 && (birthDay < 1 || birthDay > 31) {
		return nil, fmt.Errorf("invalid birth day %d", birthDay)
	}

	var filtered []string
	for _, u := range c.users {
		if birthMonth != 0 && int(u.birthDate.Month()) != birthMonth {
			continue
		}
		if birthDay != 0 && u.birthDate.Day() != birthDay {
			continue
		}
		filtered = append(filtered, u.id)
	}

	start := (page - 1) * pageSize
	if start < 0 || start >= len(filtered) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

var domains = []string{"gmail.com", "mail.ru", "yandex.ru"}
var firstNames = []string{"John", "Oliver", "Emma", "Noah", "Liam"}
var lastNames = []string{"Doe", "Smith", "Johnson", "Williams", "Jones"}

func (c *MockAuthClient) GetUserData(_ context.Context, userID string) (UserData, error) {
	birth := time.Date(1900+rand.Intn(122), time.Month(rand.Intn(12)+1), rand.Intn(28)+1, 0, 0, 0, 0, time.UTC) //nolint:gosec
	phone := fmt.Sprintf("+7 (%03d) %03d-%02d-%02d", 100+rand.Intn(900), 100+rand.Intn(900), 10+rand.Intn(90), 10+rand.Intn(90)) //nolint:gosec
	avatar := fmt.Sprintf("https://example.com/%d.jpg", 1+rand.Intn(1000))                                                      //nolint:gosec

	return UserData{
		ID:        userID,
		Email:     fmt.Sprintf("%s@%s", userID, domains[rand.Intn(len(domains))]), //nolint:gosec
		FirstName: firstNames[rand.Intn(len(firstNames))],                        //nolint:gosec
		LastName:  lastNames[rand.Intn(len(lastNames))],                          //nolint:gosec
		BirthDate: &birth,
		Phone:     &phone,
		Avatar:    &avatar,
	}, nil
}

var _ AuthClient = (*MockAuthClient)(nil)
