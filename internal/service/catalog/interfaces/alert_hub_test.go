package interfaces

import (
	"context"
	"encoding/json"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAlertHub_BroadcastsEvents(t *testing.T) {
	hub := NewAlertHub(testApp)
	mux := http.NewServeMux()
	hub.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), domain.Event{
		ID:       "evt-1",
		Type:     domain.EventCreated,
		Entity:   domain.EntityPromotion,
		EntityID: 5,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var alert Alert
	require.NoError(t, json.Unmarshal(raw, &alert))
	assert.Equal(t, "ecomApp.promotion.created", alert.Alert)
	assert.Equal(t, "5", alert.Params)
	assert.Equal(t, "evt-1", alert.Event.ID)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAlertAction(t *testing.T) {
	assert.Equal(t, "created", alertAction(domain.EventCreated))
	assert.Equal(t, "deleted", alertAction(domain.EventDeleted))
	assert.Equal(t, "updated", alertAction(domain.EventAssociated))
	assert.Equal(t, "updated", alertAction(domain.EventUpdated))
}
