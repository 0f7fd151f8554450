package http

import (
	"encoding/base64"
	"io"
	"net/http"
	"testing"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestRegisterAndLogin(t *testing.T) {
	env := startTestServer(t, testConfig(t))

	resp := doJSON(t, env, "POST", "/api/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created AuthResponse
	decodeBody(t, resp, &created)
	if created.Token == "" {
		t.Fatal("expected a token on register")
	}

	resp = doJSON(t, env, "POST", "/api/register", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate register, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", resp.StatusCode)
	}
}

func TestSendAndHistory(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")
	bobToken, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{"text": "hi bob"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp = doJSON(t, env, "POST", "/api/messages/send/"+itoa(aliceID), bobToken, map[string]string{"text": "hi alice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "GET", "/api/messages/"+itoa(bobID), aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var history []MessageResponse
	decodeBody(t, resp, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Text != "hi bob" || history[1].Text != "hi alice" {
		t.Fatalf("history out of order: %q then %q", history[0].Text, history[1].Text)
	}
	if history[0].SenderID != aliceID || history[1].SenderID != bobID {
		t.Fatalf("unexpected senders: %d then %d", history[0].SenderID, history[1].SenderID)
	}
}

func TestSendEmptyPayloadRejected(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, _ := registerTestUser(t, env, "alice")
	_, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on empty payload, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "GET", "/api/messages/"+itoa(bobID), aliceToken, nil)
	var history []MessageResponse
	decodeBody(t, resp, &history)
	if len(history) != 0 {
		t.Fatalf("expected no messages persisted, got %d", len(history))
	}
}

func TestSendRequiresAuth(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	_, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), "", map[string]string{"text": "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestSendGatedOnFriendship(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequireFriendship = true
	env := startTestServer(t, cfg)

	aliceToken, _ := registerTestUser(t, env, "alice")
	bobToken, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{"text": "hi"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before friendship, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/friends/requests", aliceToken, map[string]int64{"userId": bobID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on friend request, got %d", resp.StatusCode)
	}
	var friendReq FriendResponse
	decodeBody(t, resp, &friendReq)

	resp = doJSON(t, env, "POST", "/api/friends/requests/"+itoa(friendReq.UserID)+"/accept", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on accept, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{"text": "hi"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 after friendship, got %d", resp.StatusCode)
	}
}

func TestSendImageAttachment(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, _ := registerTestUser(t, env, "alice")
	_, bobID := registerTestUser(t, env, "bob")

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngSignature)
	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{"image": payload})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var msg MessageResponse
	decodeBody(t, resp, &msg)
	if msg.Kind != "image" {
		t.Fatalf("expected image kind, got %q", msg.Kind)
	}
	if msg.URL == "" {
		t.Fatal("expected attachment url")
	}

	// The stored object must be served back under the static route.
	fileResp, err := env.ts.Client().Get(env.ts.URL + msg.URL)
	if err != nil {
		t.Fatalf("failed to fetch attachment: %v", err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for attachment, got %d", fileResp.StatusCode)
	}
	body, err := io.ReadAll(fileResp.Body)
	if err != nil {
		t.Fatalf("failed to read attachment: %v", err)
	}
	if string(body) != string(pngSignature) {
		t.Fatal("attachment content mismatch")
	}
}

func TestSendInvalidBase64Rejected(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, _ := registerTestUser(t, env, "alice")
	_, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/messages/send/"+itoa(bobID), aliceToken, map[string]string{"image": "%%%not-base64%%%"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad encoding, got %d", resp.StatusCode)
	}
}

func TestListContactsExcludesSelf(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")
	_, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "GET", "/api/messages/users", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var users []UserResponse
	decodeBody(t, resp, &users)
	if len(users) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(users))
	}
	if users[0].ID != bobID || users[0].ID == aliceID {
		t.Fatalf("unexpected contact: %+v", users[0])
	}
}

func TestGroupMessagesAndReadSet(t *testing.T) {
	env := startTestServer(t, testConfig(t))
	aliceToken, aliceID := registerTestUser(t, env, "alice")
	bobToken, bobID := registerTestUser(t, env, "bob")

	resp := doJSON(t, env, "POST", "/api/group/messages", aliceToken, map[string]string{"text": "hello everyone"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var sent GroupMessageResponse
	decodeBody(t, resp, &sent)
	if sent.SenderID != aliceID {
		t.Fatalf("unexpected sender: %d", sent.SenderID)
	}

	resp = doJSON(t, env, "POST", "/api/group/messages/"+itoa(sent.ID)+"/read", bobToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on mark read, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, "GET", "/api/group/messages", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var history []GroupMessageResponse
	decodeBody(t, resp, &history)
	if len(history) != 1 {
		t.Fatalf("expected 1 group message, got %d", len(history))
	}
	found := false
	for _, id := range history[0].ReadBy {
		if id == bobID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bob in read set, got %v", history[0].ReadBy)
	}

	resp = doJSON(t, env, "POST", "/api/group/messages/999999/read", bobToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown message, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig(t))

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
