//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/confhub-io/confhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_Create_RequiresOrganizer(t *testing.T) {
	anon := newTestClient(t)
	resp, err := anon.POST("/api/v1/events", map[string]string{
		"title":       testutil.RandomTitle("Anon Conf"),
		"date":        futureDate(2),
		"location":    "Online",
		"description": "Should not be created",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	visitor := newTestClient(t)
	visitor.LoginAsVisitor(t)
	resp, err = visitor.POST("/api/v1/events", map[string]string{
		"title":       testutil.RandomTitle("Visitor Conf"),
		"date":        futureDate(2),
		"location":    "Online",
		"description": "Should not be created",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestEvents_Create_And_Get(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	title := testutil.RandomTitle("Create Conf")
	date := futureDate(3)
	resp, err := organizer.POST("/api/v1/events", map[string]string{
		"title":       title,
		"date":        date,
		"location":    "Munich",
		"description": "Two days of talks",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID          int64  `json:"id"`
			Title       string `json:"title"`
			Date        string `json:"date"`
			Location    string `json:"location"`
			Description string `json:"description"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	require.NotZero(t, created.Data.ID)
	assert.Equal(t, title, created.Data.Title)
	assert.Equal(t, "Munich", created.Data.Location)
	t.Cleanup(func() { deleteEvent(t, organizer, created.Data.ID) })

	// Events are public: no login needed to read one
	anon := newTestClient(t)
	resp, err = anon.GET(eventPath(created.Data.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched struct {
		Data struct {
			ID          int64  `json:"id"`
			Title       string `json:"title"`
			Date        string `json:"date"`
			Location    string `json:"location"`
			Description string `json:"description"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &fetched)
	assert.Equal(t, created.Data.ID, fetched.Data.ID)
	assert.Equal(t, title, fetched.Data.Title)
	assert.Equal(t, "Two days of talks", fetched.Data.Description)

	// DATE column round-trips as midnight UTC
	parsed, err := time.Parse(time.RFC3339, fetched.Data.Date)
	require.NoError(t, err)
	assert.Equal(t, date, parsed.UTC().Format("2006-01-02"))
}

func TestEvents_Create_DuplicateTitle(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	title := testutil.RandomTitle("Duplicate Conf")
	eventID := createTestEvent(t, organizer, title)
	t.Cleanup(func() { deleteEvent(t, organizer, eventID) })

	resp, err := organizer.POST("/api/v1/events", map[string]string{
		"title":       title,
		"date":        futureDate(2),
		"location":    "Elsewhere",
		"description": "Same title again",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var result struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Contains(t, result.Error.Message, "title")
}

func TestEvents_Create_PastDate(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	resp, err := organizer.POST("/api/v1/events", map[string]string{
		"title":       testutil.RandomTitle("Past Conf"),
		"date":        "2020-01-01",
		"location":    "Nowhere",
		"description": "Already happened",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestEvents_Create_Validation(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	// Missing title
	resp, err := organizer.POST("/api/v1/events", map[string]string{
		"date":        futureDate(2),
		"location":    "Online",
		"description": "No title",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Malformed date
	resp, err = organizer.POST("/api/v1/events", map[string]string{
		"title":       testutil.RandomTitle("Bad Date Conf"),
		"date":        "next tuesday",
		"location":    "Online",
		"description": "Unparseable date",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestEvents_Update_Flow(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	title := testutil.RandomTitle("Update Conf")
	eventID := createTestEvent(t, organizer, title)
	t.Cleanup(func() { deleteEvent(t, organizer, eventID) })

	resp, err := organizer.PUT(eventPath(eventID), map[string]string{
		"title":       title,
		"date":        futureDate(4),
		"location":    "Hamburg",
		"description": "Venue moved",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated struct {
		Data struct {
			ID       int64  `json:"id"`
			Location string `json:"location"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, eventID, updated.Data.ID)
	assert.Equal(t, "Hamburg", updated.Data.Location)

	// Change is visible on read
	resp, err = organizer.GET(eventPath(eventID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched struct {
		Data struct {
			Location    string `json:"location"`
			Description string `json:"description"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &fetched)
	assert.Equal(t, "Hamburg", fetched.Data.Location)
	assert.Equal(t, "Venue moved", fetched.Data.Description)
}

func TestEvents_Update_NotFound(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	resp, err := organizer.PUT(eventPath(99999999), map[string]string{
		"title":       testutil.RandomTitle("Ghost Conf"),
		"date":        futureDate(2),
		"location":    "Nowhere",
		"description": "Does not exist",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestEvents_Delete_Flow(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	eventID := createTestEvent(t, organizer, testutil.RandomTitle("Delete Conf"))

	resp, err := organizer.DELETE(eventPath(eventID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = organizer.GET(eventPath(eventID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Deleting again reports the absence
	resp, err = organizer.DELETE(eventPath(eventID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestEvents_List_Public(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)
	eventID := createTestEvent(t, organizer, testutil.RandomTitle("Public List Conf"))
	t.Cleanup(func() { deleteEvent(t, organizer, eventID) })

	anon := newTestClient(t)
	resp, err := anon.GET("/api/v1/events")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Events []struct {
				ID    int64  `json:"id"`
				Title string `json:"title"`
			} `json:"events"`
			Total  int `json:"total"`
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.True(t, result.Data.Total >= 1, "at least the created event should be listed")
	assert.Equal(t, 20, result.Data.Limit, "default page size")
	assert.Equal(t, 0, result.Data.Offset)
	assert.NotEmpty(t, result.Data.Events)
}

func TestEvents_List_SearchAndPagination(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	tag := testutil.RandomTitle("pagetag")
	search := url.QueryEscape(tag)
	for i := 0; i < 3; i++ {
		eventID := createTestEvent(t, organizer, fmt.Sprintf("%s %d", tag, i))
		t.Cleanup(func() { deleteEvent(t, organizer, eventID) })
	}

	listEvents := func(query string) (titles []string, total int) {
		t.Helper()
		resp, err := organizer.GET("/api/v1/events?" + query)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data struct {
				Events []struct {
					Title string `json:"title"`
				} `json:"events"`
				Total int `json:"total"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		for _, e := range result.Data.Events {
			titles = append(titles, e.Title)
		}
		return titles, result.Data.Total
	}

	titles, total := listEvents("search=" + search)
	assert.Equal(t, 3, total)
	assert.Len(t, titles, 3)

	titles, total = listEvents("search=" + search + "&limit=2")
	assert.Equal(t, 3, total, "total counts all matches, not the page")
	assert.Len(t, titles, 2)

	titles, total = listEvents("search=" + search + "&limit=2&offset=2")
	assert.Equal(t, 3, total)
	assert.Len(t, titles, 1)

	// Ascending title order is stable for the shared tag
	titles, _ = listEvents("search=" + search + "&sort=title&order=asc")
	require.Len(t, titles, 3)
	assert.Equal(t, fmt.Sprintf("%s 0", tag), titles[0])
	assert.Equal(t, fmt.Sprintf("%s 2", tag), titles[2])

	titles, _ = listEvents("search=" + search + "&sort=title&order=desc")
	require.Len(t, titles, 3)
	assert.Equal(t, fmt.Sprintf("%s 2", tag), titles[0])
}

func TestEvents_List_SortByDate(t *testing.T) {
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	tag := testutil.RandomTitle("datetag")
	nearID := createTestEvent(t, organizer, tag+" near", withDate(futureDate(1)))
	t.Cleanup(func() { deleteEvent(t, organizer, nearID) })
	farID := createTestEvent(t, organizer, tag+" far", withDate(futureDate(6)))
	t.Cleanup(func() { deleteEvent(t, organizer, farID) })

	resp, err := organizer.GET("/api/v1/events?search=" + url.QueryEscape(tag) + "&sort=date&order=desc")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Events []struct {
				ID int64 `json:"id"`
			} `json:"events"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.Len(t, result.Data.Events, 2)
	assert.Equal(t, farID, result.Data.Events[0].ID, "latest date first under desc order")
	assert.Equal(t, nearID, result.Data.Events[1].ID)
}

func TestEvents_List_UpcomingFilter(t *testing.T) {
	ctx := context.Background()
	organizer := newTestClient(t)
	organizer.LoginAsOrganizer(t)

	tag := testutil.RandomTitle("upcomingtag")

	// Past events cannot be created through the API, seed one directly
	var pastID int64
	err := testDB.QueryRow(ctx,
		`INSERT INTO event (title, date, location, description) VALUES ($1, NOW() - INTERVAL '30 days', 'Archive Hall', 'Long gone') RETURNING id`,
		tag+" past",
	).Scan(&pastID)
	require.NoError(t, err)
	t.Cleanup(func() { deleteEvent(t, organizer, pastID) })

	futureID := createTestEvent(t, organizer, tag+" future")
	t.Cleanup(func() { deleteEvent(t, organizer, futureID) })

	listTotal := func(query string) int {
		t.Helper()
		resp, err := organizer.GET("/api/v1/events?" + query)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Data struct {
				Total int `json:"total"`
			} `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		return result.Data.Total
	}

	assert.Equal(t, 2, listTotal("search="+url.QueryEscape(tag)))
	assert.Equal(t, 1, listTotal("search="+url.QueryEscape(tag)+"&upcoming=true"))
}

func TestEvents_List_InvalidQuery(t *testing.T) {
	anon := newTestClient(t)

	for _, query := range []string{
		"sort=color",
		"order=sideways",
		"limit=0",
		"limit=abc",
		"offset=-1",
	} {
		resp, err := anon.GET("/api/v1/events?" + query)
		require.NoError(t, err, "query %q", query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", query)
		resp.Body.Close()
	}
}

func TestEvents_Get_InvalidID(t *testing.T) {
	anon := newTestClient(t)

	resp, err := anon.GET("/api/v1/events/not-a-number")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
