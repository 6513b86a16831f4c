package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"roadwatch/predict"
)

// Transport delivers a composed notification. Implementations must honor ctx
// cancellation so a slow endpoint cannot stall the caller.
type Transport interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// DeliveryError wraps a transport failure. It is logged and swallowed by the
// gateway, never surfaced to the inference caller.
type DeliveryError struct {
	Transport string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("alert delivery via %s: %v", e.Transport, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Context carries the optional request coordinates into the alert body.
type Context struct {
	Latitude  *float64
	Longitude *float64
}

// Gateway fires a best-effort, at-most-once notification when any model in
// the ensemble predicts the most severe class.
type Gateway struct {
	transports []Transport
	timeout    time.Duration
	log        *zap.Logger
}

func NewGateway(transports []Transport, timeout time.Duration, log *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{transports: transports, timeout: timeout, log: log}
}

// MaybeAlert checks the trigger condition and dispatches. Delivery failures
// are logged and swallowed; MaybeAlert never returns an error and holds no
// lock shared with the ledger.
func (g *Gateway) MaybeAlert(ctx context.Context, ens predict.Ensemble, alertCtx Context) {
	if !ens.AnySevere() {
		return
	}
	if len(g.transports) == 0 {
		g.log.Warn("severe prediction but no alert transport configured")
		return
	}

	subject := "Accident Alert: Severe Prediction"
	body := composeBody(ens, alertCtx)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	for _, t := range g.transports {
		if err := t.Send(ctx, subject, body); err != nil {
			g.log.Error("alert delivery failed",
				zap.Error(&DeliveryError{Transport: t.Name(), Err: err}))
			continue
		}
		g.log.Info("severe accident alert sent", zap.String("transport", t.Name()))
	}
}

func composeBody(ens predict.Ensemble, alertCtx Context) string {
	var b strings.Builder
	b.WriteString("A Severe Accident was predicted!\n\n")
	if alertCtx.Latitude != nil {
		fmt.Fprintf(&b, "Latitude: %g\n", *alertCtx.Latitude)
	}
	if alertCtx.Longitude != nil {
		fmt.Fprintf(&b, "Longitude: %g\n", *alertCtx.Longitude)
	}
	b.WriteString("\nModel Predictions:\n")
	for _, r := range ens.Results {
		fmt.Fprintf(&b, "%s: %s\n", r.Model, r.LabelName)
	}
	return b.String()
}
