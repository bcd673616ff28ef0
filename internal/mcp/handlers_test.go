package mcp

import (
	"os"
	"testing"

	"github.com/agentmail/bus/internal/product"
	"github.com/agentmail/bus/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	s := NewServer()
	RegisterDefaultTools(s, Deps{Store: st})
	return s, st
}

func TestCreateAgentCreatesProjectAndAgent(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.tools.Execute("create_agent", "", map[string]interface{}{
		"project_slug": "svc-a",
		"name":         "Alpha",
		"program":      "claude-code",
		"model":        "test-model",
	})
	if err != nil {
		t.Fatalf("create_agent: %v", err)
	}
	m := result.(map[string]interface{})
	if m["agent_id"].(int64) == 0 {
		t.Fatalf("expected non-zero agent_id")
	}
}

func TestSendMessageAndListInboxRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	create := func(name string) int64 {
		r, err := s.tools.Execute("create_agent", "", map[string]interface{}{
			"project_slug": "svc-a", "name": name, "program": "claude-code", "model": "m",
		})
		if err != nil {
			t.Fatalf("create_agent %s: %v", name, err)
		}
		return r.(map[string]interface{})["agent_id"].(int64)
	}
	senderID := create("Sender")
	recvID := create("Receiver")

	sendResult, err := s.tools.Execute("send_message", "", map[string]interface{}{
		"sender_agent_id": float64(senderID),
		"recipient_ids":   []interface{}{float64(recvID)},
		"subject":         "hello",
		"body_md":         "world",
	})
	if err != nil {
		t.Fatalf("send_message: %v", err)
	}
	if sendResult.(map[string]interface{})["message_id"] == nil {
		t.Fatalf("expected message_id in result")
	}

	inbox, err := s.tools.Execute("list_inbox", "", map[string]interface{}{"agent_id": float64(recvID)})
	if err != nil {
		t.Fatalf("list_inbox: %v", err)
	}
	count := inbox.(map[string]interface{})["count"].(int)
	if count != 1 {
		t.Fatalf("expected 1 message in inbox, got %d", count)
	}
}

func TestSendMessageRequiresRecipients(t *testing.T) {
	s, _ := newTestServer(t)
	r, err := s.tools.Execute("create_agent", "", map[string]interface{}{
		"project_slug": "svc-a", "name": "Solo", "program": "claude-code", "model": "m",
	})
	if err != nil {
		t.Fatalf("create_agent: %v", err)
	}
	senderID := r.(map[string]interface{})["agent_id"].(int64)

	_, err = s.tools.Execute("send_message", "", map[string]interface{}{
		"sender_agent_id": float64(senderID),
		"subject":         "hello",
	})
	if err == nil {
		t.Fatalf("expected validation error for missing recipients")
	}
}

func TestReserveAndReleaseFile(t *testing.T) {
	s, _ := newTestServer(t)
	r, err := s.tools.Execute("create_agent", "", map[string]interface{}{
		"project_slug": "svc-a", "name": "Holder", "program": "claude-code", "model": "m",
	})
	if err != nil {
		t.Fatalf("create_agent: %v", err)
	}
	agentID := r.(map[string]interface{})["agent_id"].(int64)

	reserveResult, err := s.tools.Execute("reserve_file", "", map[string]interface{}{
		"agent_id":     float64(agentID),
		"path_pattern": "src/**",
		"exclusive":    true,
	})
	if err != nil {
		t.Fatalf("reserve_file: %v", err)
	}
	resID := reserveResult.(map[string]interface{})["reservation_id"].(int64)

	if _, err := s.tools.Execute("release_file", "", map[string]interface{}{"reservation_id": float64(resID)}); err != nil {
		t.Fatalf("release_file: %v", err)
	}
}

func TestProductToolsRespectFeatureGate(t *testing.T) {
	os.Unsetenv(product.EnvEnableProducts)
	s, _ := newTestServer(t)
	_, err := s.tools.Execute("ensure_product", "", map[string]interface{}{"name": "Acme"})
	if err == nil {
		t.Fatalf("expected feature-disabled error when gate is off")
	}
}

func TestProductToolsEnsureAndLinkWhenEnabled(t *testing.T) {
	t.Setenv(product.EnvEnableProducts, "1")
	s, st := newTestServer(t)
	if _, err := st.CreateProject("svc-a", "svc-a-human"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	ensureResult, err := s.tools.Execute("ensure_product", "", map[string]interface{}{"name": "Acme Suite"})
	if err != nil {
		t.Fatalf("ensure_product: %v", err)
	}
	productUID := ensureResult.(map[string]interface{})["product_uid"].(string)

	linkResult, err := s.tools.Execute("products_link", "", map[string]interface{}{
		"product_key": productUID,
		"project_key": "svc-a",
	})
	if err != nil {
		t.Fatalf("products_link: %v", err)
	}
	if !linkResult.(map[string]interface{})["linked"].(bool) {
		t.Fatalf("expected linked true")
	}
}
