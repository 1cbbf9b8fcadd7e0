//go:build integration

package integration

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/confhub-io/confhub/internal/testutil"
	"github.com/stretchr/testify/require"
)

// futureDate returns a date safely in the future in the API wire format.
func futureDate(months int) string {
	return time.Now().AddDate(0, months, 0).Format("2006-01-02")
}

// eventPath builds an event URL from a numeric ID.
func eventPath(id int64) string {
	return "/api/v1/events/" + strconv.FormatInt(id, 10)
}

// reportPath builds a report URL from a numeric ID.
func reportPath(id int64) string {
	return "/api/v1/reports/" + strconv.FormatInt(id, 10)
}

// userPath builds a user URL from a numeric ID.
func userPath(id int64) string {
	return "/api/v1/users/" + strconv.FormatInt(id, 10)
}

// createTestEvent creates an event and returns its ID. The client must
// be logged in as an organizer. Use t.Cleanup with deleteEvent for
// automatic removal.
func createTestEvent(t *testing.T, client *testutil.Client, title string, opts ...eventOption) int64 {
	t.Helper()

	payload := map[string]interface{}{
		"title":       title,
		"date":        futureDate(2),
		"location":    "Online",
		"description": "Test event description",
	}

	for _, opt := range opts {
		opt(payload)
	}

	resp, err := client.POST("/api/v1/events", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

type eventOption func(map[string]interface{})

func withDate(date string) eventOption {
	return func(m map[string]interface{}) {
		m["date"] = date
	}
}

func withLocation(location string) eventOption {
	return func(m map[string]interface{}) {
		m["location"] = location
	}
}

func withDescription(description string) eventOption {
	return func(m map[string]interface{}) {
		m["description"] = description
	}
}

// createTestReport schedules a report for an event and returns the
// report ID. The client must be logged in as an organizer.
func createTestReport(t *testing.T, client *testutil.Client, eventID int64, topic string) int64 {
	t.Helper()

	resp, err := client.POST(eventPath(eventID)+"/reports", map[string]string{
		"topic": topic,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID
}

// registerTestUser creates a fresh visitor account and returns its ID
// and email. The client keeps whatever session it had; use LoginAs to
// authenticate as the new account.
func registerTestUser(t *testing.T, client *testutil.Client, password string) (id int64, email string) {
	t.Helper()

	email = testutil.RandomEmail()
	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"name":     "Test",
		"surname":  "User",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.ID, email
}

// grantRole grants a role to a user by email. The client must be logged
// in as admin.
func grantRole(t *testing.T, client *testutil.Client, email, role string) {
	t.Helper()

	resp, err := client.PUT("/api/v1/users/role", map[string]string{
		"email": email,
		"role":  role,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// deleteEvent deletes an event. Does not fail if already deleted.
func deleteEvent(t *testing.T, client *testutil.Client, eventID int64) {
	t.Helper()
	resp, err := client.DELETE(eventPath(eventID))
	if err != nil {
		t.Logf("cleanup warning (event %d): %v", eventID, err)
		return
	}
	resp.Body.Close()
}

// deleteUser deletes a user. Does not fail if already deleted. The
// client must be logged in as admin.
func deleteUser(t *testing.T, client *testutil.Client, userID int64) {
	t.Helper()
	resp, err := client.DELETE(userPath(userID))
	if err != nil {
		t.Logf("cleanup warning (user %d): %v", userID, err)
		return
	}
	resp.Body.Close()
}

// registerForEvent registers the logged-in user for an event.
func registerForEvent(t *testing.T, client *testutil.Client, eventID int64) {
	t.Helper()
	resp, err := client.POST(eventPath(eventID)+"/registration", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

// isRegistered reports the registration state of the logged-in user.
func isRegistered(t *testing.T, client *testutil.Client, eventID int64) bool {
	t.Helper()
	resp, err := client.GET(eventPath(eventID) + "/registration")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Registered bool `json:"registered"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Registered
}

// listParticipants returns the emails of an event's participants with
// the given role. The client must be logged in as an organizer.
func listParticipants(t *testing.T, client *testutil.Client, eventID int64, role string) []string {
	t.Helper()

	path := eventPath(eventID) + "/participants"
	if role != "" {
		path += "?role=" + role
	}
	resp, err := client.GET(path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Participants []struct {
				Email string `json:"email"`
			} `json:"participants"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)

	emails := make([]string, 0, len(result.Data.Participants))
	for _, p := range result.Data.Participants {
		emails = append(emails, p.Email)
	}
	return emails
}

// assignSpeaker assigns a speaker to a report. The client must be
// logged in as an organizer.
func assignSpeaker(t *testing.T, client *testutil.Client, reportID, speakerID int64) {
	t.Helper()
	resp, err := client.PUT(reportPath(reportID)+"/speaker", map[string]int64{
		"speaker_id": speakerID,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// getEventReports returns the reports of an event.
func getEventReports(t *testing.T, client *testutil.Client, eventID int64) []reportView {
	t.Helper()
	resp, err := client.GET(eventPath(eventID) + "/reports")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Reports []reportView `json:"reports"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Reports
}

// reportView mirrors the report JSON shape for assertions.
type reportView struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	EventID   int64  `json:"event_id"`
	SpeakerID *int64 `json:"speaker_id"`
}
