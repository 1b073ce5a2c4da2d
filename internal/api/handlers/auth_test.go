package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/task-manager/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authedRequest performs a request carrying the session token as the
// "token" cookie, the way the browser client does.
func authedRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name           string
		request        map[string]string
		setup          func()
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name: "successful registration",
			request: map[string]string{
				"username": "newuser",
				"email":    "newuser@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, resp *http.Response) {
				token := testutil.ExtractTokenCookie(t, resp)
				assert.NotEmpty(t, token)

				var result testutil.UserResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, "newuser", result.Username)
				assert.Equal(t, "newuser@example.com", result.Email)
				assert.NotEmpty(t, result.ID)
			},
		},
		{
			name: "missing username",
			request: map[string]string{
				"email":    "nouser@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing password",
			request: map[string]string{
				"username": "testuser",
				"email":    "nopw@example.com",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate email",
			request: map[string]string{
				"username": "anothername",
				"email":    "existing@example.com",
				"password": "password123",
			},
			setup: func() {
				testutil.NewUserBuilder().
					WithEmail("existing@example.com").
					Build(t, ts.DB.DB)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "empty request body",
			request:        map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.DB.Truncate(t)

			if tt.setup != nil {
				tt.setup()
			}

			body, _ := json.Marshal(tt.request)
			resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, rawPassword := testutil.NewUserBuilder().
		WithEmail("loginuser@example.com").
		Build(t, ts.DB.DB)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
	}{
		{
			name: "successful login",
			request: map[string]string{
				"email":    user.Email,
				"password": rawPassword,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "wrong password",
			request: map[string]string{
				"email":    user.Email,
				"password": "wrongpassword",
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown email",
			request: map[string]string{
				"email":    "nobody@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "missing password",
			request: map[string]string{
				"email": user.Email,
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.request)
			resp, err := http.Post(ts.APIURL("/auth/login"), "application/json", bytes.NewBuffer(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var result testutil.UserResponse
				testutil.AssertJSONResponse(t, resp, &result)
				assert.Equal(t, user.ID.String(), result.ID)
				assert.NotEmpty(t, testutil.ExtractTokenCookie(t, resp))
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.APIURL("/auth/logout"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The cookie copy is cleared
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "token" {
			assert.Empty(t, cookie.Value)
			assert.True(t, cookie.MaxAge < 0)
		}
	}
}

func TestAuthHandler_Profile(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, token := testutil.NewUserBuilder().
		WithUsername("profileuser").
		BuildAndAuthenticate(t, ts)

	t.Run("get profile", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/profile"), token, nil)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]interface{}
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, user.ID, result["id"])
		assert.Equal(t, "profileuser", result["username"])
		// The password hash never leaves the server
		assert.NotContains(t, result, "passwordHash")
		assert.NotContains(t, result, "password")
	})

	t.Run("get profile without token", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/profile"), "", nil)
		defer resp.Body.Close()
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "no token")
	})

	t.Run("get profile with garbage token", func(t *testing.T) {
		resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/profile"), "not-a-jwt", nil)
		defer resp.Body.Close()
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "token failed")
	})

	t.Run("bearer header works without cookie", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.APIURL("/auth/profile"), nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("update profile partially", func(t *testing.T) {
		resp := authedRequest(t, http.MethodPut, ts.APIURL("/auth/profile"), token, map[string]string{
			"username": "renamed",
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result testutil.UserResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, "renamed", result.Username)
		assert.Equal(t, user.Email, result.Email)
	})
}

func TestAuthHandler_TokenOfDeletedUser(t *testing.T) {
	ts := testutil.NewTestServer(t)

	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	// Remove the account behind the still-valid token
	userID := uuid.MustParse(user.ID)
	require.NoError(t, ts.DB.DB.Exec("DELETE FROM users WHERE id = ?", userID).Error)

	resp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/profile"), token, nil)
	defer resp.Body.Close()
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "token failed")
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	ts := testutil.NewTestServer(t)

	builder := testutil.NewUserBuilder().WithPassword("originalpw123")
	_, token := builder.BuildAndAuthenticate(t, ts)

	t.Run("wrong old password", func(t *testing.T) {
		resp := authedRequest(t, http.MethodPut, ts.APIURL("/auth/change-password"), token, map[string]string{
			"oldPassword": "wrongpassword",
			"newPassword": "newpassword123",
		})
		defer resp.Body.Close()
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Invalid old password")
	})

	t.Run("successful change", func(t *testing.T) {
		resp := authedRequest(t, http.MethodPut, ts.APIURL("/auth/change-password"), token, map[string]string{
			"oldPassword": "originalpw123",
			"newPassword": "newpassword123",
		})
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// The old token still authenticates: no revocation on password change
		after := authedRequest(t, http.MethodGet, ts.APIURL("/auth/profile"), token, nil)
		defer after.Body.Close()
		assert.Equal(t, http.StatusOK, after.StatusCode)
	})
}

func TestAuthHandler_AccountStats(t *testing.T) {
	ts := testutil.NewTestServer(t)

	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	for _, body := range []map[string]interface{}{
		{"title": "one"},
		{"title": "two"},
		{"title": "three"},
	} {
		resp := authedRequest(t, http.MethodPost, ts.APIURL("/tasks"), token, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	// Complete one of them
	var tasks []struct {
		ID string `json:"id"`
	}
	listResp := authedRequest(t, http.MethodGet, ts.APIURL("/tasks"), token, nil)
	testutil.AssertJSONResponse(t, listResp, &tasks)
	listResp.Body.Close()
	require.Len(t, tasks, 3)

	completeResp := authedRequest(t, http.MethodPut, ts.APIURL("/tasks/"+tasks[0].ID), token, map[string]interface{}{
		"completed": true,
	})
	require.Equal(t, http.StatusOK, completeResp.StatusCode)
	completeResp.Body.Close()

	statsResp := authedRequest(t, http.MethodGet, ts.APIURL("/auth/stats"), token, nil)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats struct {
		TotalTasks     int64 `json:"totalTasks"`
		CompletedTasks int64 `json:"completedTasks"`
		PendingTasks   int64 `json:"pendingTasks"`
	}
	testutil.AssertJSONResponse(t, statsResp, &stats)
	assert.Equal(t, int64(3), stats.TotalTasks)
	assert.Equal(t, int64(1), stats.CompletedTasks)
	assert.Equal(t, int64(2), stats.PendingTasks)
}
