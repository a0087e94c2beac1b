package payments

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/r2blaze/r2blaze-backend/api/responses"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

const (
	maxNotifyBodyBytes     = 1 << 20
	defaultNotifyReadLimit = 5 * time.Second
	notifyProcessTimeout   = 20 * time.Second
)

type NotificationService interface {
	Process(ctx context.Context, body []byte) error
	RecordRejected()
}

type acknowledgement struct {
	Acknowledged bool `json:"acknowledged"`
}

// Notify receives Paystack webhooks. Only a signature mismatch is refused;
// every other failure is logged and acknowledged so Paystack stops
// redelivering, and the reconcile sweep picks the order up later.
func Notify(svc NotificationService, secret []byte, readTimeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	if readTimeout <= 0 {
		readTimeout = defaultNotifyReadLimit
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || len(secret) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification handling unavailable"))
			return
		}

		// Not every ResponseWriter supports deadlines; the size cap still holds.
		_ = http.NewResponseController(w).SetReadDeadline(time.Now().Add(readTimeout))
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotifyBodyBytes))
		if err != nil {
			warn(ctx, logg, err, "notify.read_failed")
			acknowledge(w)
			return
		}

		if !paystack.VerifySignature(body, r.Header.Get(paystack.SignatureHeader), secret) {
			svc.RecordRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature"))
			return
		}

		processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyProcessTimeout)
		defer cancel()
		if err := svc.Process(processCtx, body); err != nil {
			warn(ctx, logg, err, "notify.processing_failed")
		}
		acknowledge(w)
	}
}

func acknowledge(w http.ResponseWriter) {
	responses.WriteJSON(w, http.StatusOK, acknowledgement{Acknowledged: true})
}

func warn(ctx context.Context, logg *logger.Logger, err error, msg string) {
	if logg == nil {
		return
	}
	fields := map[string]any{"error": err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}
	logg.Warn(logg.WithFields(ctx, fields), msg)
}
