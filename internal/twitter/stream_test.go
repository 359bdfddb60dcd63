package twitter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSyncRules_DeletesThenAdds(t *testing.T) {
	var posts []map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets/search/stream/rules" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"id":"111","value":"from:old_account"}]}`))
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			var payload map[string]json.RawMessage
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("bad rules payload: %v", err)
			}
			posts = append(posts, payload)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bearer", 2*time.Second)
	if err := c.SyncRules(context.Background(), []string{"alpha_caller", "degen_two"}); err != nil {
		t.Fatalf("SyncRules failed: %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("Expected delete + add posts, got %d", len(posts))
	}
	if _, ok := posts[0]["delete"]; !ok {
		t.Error("Expected first post to delete stale rules")
	}
	addRaw, ok := posts[1]["add"]
	if !ok {
		t.Fatal("Expected second post to add the rule")
	}
	var added []streamRule
	if err := json.Unmarshal(addRaw, &added); err != nil {
		t.Fatalf("bad add payload: %v", err)
	}
	if len(added) != 1 || added[0].Value != "from:alpha_caller OR from:degen_two" {
		t.Errorf("Unexpected rule: %+v", added)
	}
}

func TestListen_DeliversPostText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets/search/stream" {
			http.NotFound(w, r)
			return
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"id":"1","text":"first post"}}`+"\n")
		flusher.Flush()
		_, _ = io.WriteString(w, "\n") // keep-alive heartbeat
		flusher.Flush()
		_, _ = io.WriteString(w, `{"data":{"id":"2","text":"second post"}}`+"\n")
		flusher.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 4)
	done := make(chan struct{})
	c := NewClient(srv.URL, "bearer", 2*time.Second)
	go func() {
		c.Listen(ctx, func(text string) { got <- text })
		close(done)
	}()

	for _, want := range []string{"first post", "second post"} {
		select {
		case text := <-got:
			if text != want {
				t.Errorf("Expected %q, got %q", want, text)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Listen did not stop after cancellation")
	}
}

func TestListen_StopsImmediatelyWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("http://127.0.0.1:0", "bearer", time.Second)
	done := make(chan struct{})
	go func() {
		c.Listen(ctx, func(string) { t.Error("handler must not fire") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return for a cancelled context")
	}
}
