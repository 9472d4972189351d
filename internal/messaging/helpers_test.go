package messaging_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/messaging"
)

var (
	buyer    = domain.Identity{UserID: "buyer", Role: domain.RoleMember}
	seller   = domain.Identity{UserID: "seller", Role: domain.RoleMember}
	stranger = domain.Identity{UserID: "stranger", Role: domain.RoleMember}
	admin    = domain.Identity{UserID: "admin", Role: domain.RoleAdmin}
)

type rawFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// drain returns every frame currently queued on s.
func drain(t *testing.T, s *messaging.Session) []rawFrame {
	t.Helper()
	var out []rawFrame
	for {
		select {
		case payload, ok := <-s.Outbound():
			if !ok {
				return out
			}
			var f rawFrame
			require.NoError(t, json.Unmarshal(payload, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func frameTypes(frames []rawFrame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
