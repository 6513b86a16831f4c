package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"roadwatch/model"
	"roadwatch/predict"
)

type fakeTransport struct {
	name    string
	err     error
	calls   int
	subject string
	body    string
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(ctx context.Context, subject, body string) error {
	f.calls++
	f.subject = subject
	f.body = body
	return f.err
}

func severeEnsemble() predict.Ensemble {
	return predict.Ensemble{Results: []predict.Result{
		{Model: "Logistic Regression", Label: 1, LabelName: "Minor Accident"},
		{Model: "XGBoost", Label: model.SevereClass, LabelName: "Severe Accident"},
	}}
}

func TestMaybeAlertFiresOnSevere(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	g := NewGateway([]Transport{transport}, time.Second, zap.NewNop())

	lat, lon := 19.07, 72.88
	g.MaybeAlert(context.Background(), severeEnsemble(), Context{Latitude: &lat, Longitude: &lon})

	if transport.calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", transport.calls)
	}
	if transport.subject != "Accident Alert: Severe Prediction" {
		t.Fatalf("unexpected subject %q", transport.subject)
	}
	for _, want := range []string{"19.07", "72.88", "XGBoost: Severe Accident", "Logistic Regression: Minor Accident"} {
		if !strings.Contains(transport.body, want) {
			t.Fatalf("body missing %q:\n%s", want, transport.body)
		}
	}
}

func TestMaybeAlertSkipsNonSevere(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	g := NewGateway([]Transport{transport}, time.Second, zap.NewNop())

	ens := predict.Ensemble{Results: []predict.Result{
		{Model: "Decision Tree", Label: 2, LabelName: "Moderate Accident"},
	}}
	g.MaybeAlert(context.Background(), ens, Context{})

	if transport.calls != 0 {
		t.Fatalf("expected no delivery, got %d", transport.calls)
	}
}

func TestMaybeAlertSwallowsDeliveryFailure(t *testing.T) {
	failing := &fakeTransport{name: "smtp", err: errors.New("connection refused")}
	working := &fakeTransport{name: "webhook"}
	g := NewGateway([]Transport{failing, working}, time.Second, zap.NewNop())

	// Must not panic or abort: the second transport still gets the alert.
	g.MaybeAlert(context.Background(), severeEnsemble(), Context{})

	if failing.calls != 1 || working.calls != 1 {
		t.Fatalf("expected both transports attempted, got %d and %d", failing.calls, working.calls)
	}
}

func TestMaybeAlertNoTransports(t *testing.T) {
	g := NewGateway(nil, time.Second, zap.NewNop())
	g.MaybeAlert(context.Background(), severeEnsemble(), Context{})
}

func TestComposeBodyOmitsMissingCoordinates(t *testing.T) {
	body := composeBody(severeEnsemble(), Context{})
	if strings.Contains(body, "Latitude") || strings.Contains(body, "Longitude") {
		t.Fatalf("body should omit absent coordinates:\n%s", body)
	}
}
