package handlers

import (
	"context"
	"errors"
	"net/http"

	"mines_client/internal/controller"
	"mines_client/internal/domain"
	"mines_client/internal/errs"
	"mines_client/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Game is the part of the controller the control surface drives.
type Game interface {
	Start(ctx context.Context, req controller.StartRequest) (string, error)
	Reveal(ctx context.Context, idx int) error
	CashOut(ctx context.Context) error
	Acknowledge(ctx context.Context) error
	View(ctx context.Context) (controller.View, error)
	Verify(ctx context.Context) (controller.VerifyResult, error)
	Balance() (decimal.Decimal, bool)
	UserID() int64
	Notices(ctx context.Context) ([]controller.Notice, error)
	DismissNotice(ctx context.Context, id int64) error
}

type Handler struct {
	Game    Game
	Rounds  repository.RoundStore
	Presets map[string]domain.Configuration
}

func NewHandler(game Game, rounds repository.RoundStore, presets map[string]domain.Configuration) *Handler {
	return &Handler{Game: game, Rounds: rounds, Presets: presets}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	v, ok := uidVal.(int64)
	return v, ok
}

// statusFor maps an error kind to the HTTP status the surface answers with.
func statusFor(err error) int {
	if errors.Is(err, controller.ErrStopped) {
		return http.StatusServiceUnavailable
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		switch errs.CodeOf(err) {
		case errs.CodeInFlight, errs.CodeWrongState:
			return http.StatusConflict
		case errs.CodeNotFound:
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case errs.KindProtocol, errs.KindIntegrity:
		return http.StatusConflict
	case errs.KindConnectivity:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if k := errs.KindOf(err); k != errs.KindNone {
		body["kind"] = k.String()
	}
	if code := errs.CodeOf(err); code != "" {
		body["code"] = code
	}
	c.JSON(statusFor(err), body)
}
