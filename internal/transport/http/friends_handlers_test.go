package http

import (
	"net/http"
	"testing"
)

func TestFriendRequestLifecycle(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")
	bobToken, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": bobID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": bobID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate request, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "GET", "/api/friends/requests", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var pending []FriendResponse
	decodeBody(t, resp, &pending)
	if len(pending) != 1 || pending[0].UserID != aliceID || pending[0].Status != "pending" {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests/"+itoa(aliceID)+"/accept", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on accept, got %d", resp.StatusCode)
	}

	for _, token := range []string{aliceToken, bobToken} {
		resp = doJSON(t, env, "GET", "/api/friends", token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var friends []FriendResponse
		decodeBody(t, resp, &friends)
		if len(friends) != 1 || friends[0].Status != "accepted" {
			t.Fatalf("unexpected friends list: %+v", friends)
		}
	}
}

func TestFriendRequestRejectAllowsResend(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")
	bobToken, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": bobID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "DELETE", "/api/friends/requests/"+itoa(aliceID), bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on reject, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": bobID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on resend, got %d", resp.StatusCode)
	}
}

func TestFriendRequestValidation(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")

	resp := doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": aliceID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on self request, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": 42424242})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests/9999/accept", aliceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing request, got %d", resp.StatusCode)
	}
}
