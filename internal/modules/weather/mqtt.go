package weather

import (
	"context"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/service"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/mqtt"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

// MQTTSubscriber is the part of the broker client the weather module needs.
type MQTTSubscriber interface {
	SetMessageHandler(handler mqtt.MessageHandler)
	SetRejectHandler(fn func())
}

// registerMQTTHandler routes broker payloads through the same validation and
// transaction as POST /api/data.
func registerMQTTHandler(subscriber MQTTSubscriber, svc *service.Service) {
	subscriber.SetMessageHandler(func(ctx context.Context, req types.ObservationRequest) error {
		_, err := svc.SubmitObservation(ctx, observability.SourceMQTT, req)
		return err
	})
	subscriber.SetRejectHandler(func() {
		svc.CountRejected(observability.SourceMQTT)
	})
}
