package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

type fakeNotifier struct {
	got SupportRequest
	err error
}

func (f *fakeNotifier) NotifySupport(_ context.Context, req SupportRequest) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	body  any
	dedup string
}

func (f *fakePublisher) Publish(_ context.Context, body any, dedupID string) (string, error) {
	f.body, f.dedup = body, dedupID
	return "q-1", nil
}

func TestConnectSupportFillsFromSession(t *testing.T) {
	h := testHours(t)
	now := time.Date(2026, 10, 16, 11, 0, 0, 0, h.Location)
	n := &fakeNotifier{}
	tl := NewConnectSupportTool(n, h, func() time.Time { return now })

	res := tl.Handler(context.Background(), testCall, map[string]any{"reason": "wants a manager"})
	require.True(t, res.OK())
	require.Equal(t, "Dana Reed", n.got.CustomerName)
	require.Equal(t, "conv-42", n.got.ConversationID)

	out := res.Payload.(SupportHandoff)
	require.True(t, out.Queued)
	require.True(t, out.InHours)
	require.Contains(t, res.Summary, "dana@example.com or +16015550100")
}

func TestConnectSupportAcknowledgesWhenDeliveryFails(t *testing.T) {
	h := testHours(t)
	sunday := time.Date(2026, 10, 18, 11, 0, 0, 0, h.Location)
	n := &fakeNotifier{err: errors.New("queue down")}
	req := SupportRequest{ConversationID: "c", CustomerName: "Sam", RequestedAt: sunday}

	res := connectSupport(context.Background(), n, h, req)
	require.Equal(t, contractx.ToolSuccess, res.Status)
	out := res.Payload.(SupportHandoff)
	require.False(t, out.Queued)
	require.False(t, out.InHours)
	require.Contains(t, res.Summary, "outside business hours")
}

func TestQueueNotifierUsesDedupKey(t *testing.T) {
	pub := &fakePublisher{}
	at := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC)

	id, err := NewQueueNotifier(pub).NotifySupport(context.Background(), SupportRequest{ConversationID: "c1", RequestedAt: at})
	require.NoError(t, err)
	require.Equal(t, "q-1", id)
	require.Equal(t, "c1:2026-10-16T16:00:00Z", pub.dedup)
}

func TestShowDirectionsByChannel(t *testing.T) {
	cfg := DealershipConfig{Name: "Test Honda", Address: "1 Main St", MapsURL: "https://maps.example/1", Phone: "555-0100"}

	web := showDirections(cfg, contractx.ChannelWeb)
	require.Contains(t, web.Summary, "[Get directions](https://maps.example/1)")

	sms := showDirections(cfg, contractx.ChannelSMS)
	require.NotContains(t, sms.Summary, "](")
	require.Contains(t, sms.Summary, "https://maps.example/1")
	require.Equal(t, "1 Main St", sms.Payload.(Directions).Address)
}
