package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"mines_client/internal/controller"
	"mines_client/internal/domain"
	"mines_client/internal/logger"
	"mines_client/internal/ws"

	"github.com/shopspring/decimal"
)

// ws_smoke plays one round against a running dev server: it fetches a token,
// connects the real controller, reveals cells in order and cashes out.
func main() {
	base := flag.String("server", "http://127.0.0.1:8090", "dev server base url")
	user := flag.Int64("user", 3001, "user id to play as")
	wager := flag.String("wager", "10", "wager")
	reveals := flag.Int("reveals", 2, "cells to reveal before cashing out")
	flag.Parse()
	logger.Init("info", false)

	token, err := fetchToken(*base, *user)
	if err != nil {
		logger.Fatal("fetch token", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(*base, "http") + "/ws"
	channel := ws.NewChannel(wsURL, token)
	ctrl := controller.New(channel, controller.Options{UserID: *user, GateTimeout: 5 * time.Second})
	go func() { _ = ctrl.Run(ctx) }()
	go func() { _ = channel.Run(ctx, ctrl) }()

	v := waitFor(ctx, ctrl, "sync", func(v controller.View) bool { return v.Connected && !v.Resyncing })
	if v.Session.Status == domain.StatusPlaying {
		logger.Info("resumed unfinished session", "session_id", v.Session.ID)
	} else {
		if _, err := ctrl.Start(ctx, controller.StartRequest{Wager: decimal.RequireFromString(*wager)}); err != nil {
			logger.Fatal("start", "error", err)
		}
		waitFor(ctx, ctrl, "start", func(v controller.View) bool {
			return v.Session.Status == domain.StatusPlaying && len(v.InFlight) == 0
		})
	}

	for cell := 0; cell < *reveals; cell++ {
		v, _ := ctrl.View(ctx)
		if v.Session.Status != domain.StatusPlaying {
			break
		}
		if v.Session.HasRevealed(cell) {
			continue
		}
		if err := ctrl.Reveal(ctx, cell); err != nil {
			logger.Fatal("reveal", "cell", cell, "error", err)
		}
		waitFor(ctx, ctrl, "reveal", func(v controller.View) bool { return len(v.InFlight) == 0 })
	}

	if v, _ := ctrl.View(ctx); v.CanCashOut {
		if err := ctrl.CashOut(ctx); err != nil {
			logger.Fatal("cash out", "error", err)
		}
	}
	v = waitFor(ctx, ctrl, "settle", func(v controller.View) bool { return v.Session.Status == domain.StatusSettled })
	res, err := ctrl.Verify(ctx)
	if err != nil {
		logger.Fatal("verify", "error", err)
	}

	out, _ := json.MarshalIndent(map[string]any{"session": v.Session, "balance": v.Balance, "verify": res}, "", "  ")
	fmt.Println(string(out))
	if !res.OK {
		os.Exit(1)
	}
	logger.Info("smoke test finished")
}

func fetchToken(base string, user int64) (string, error) {
	resp, err := http.Get(fmt.Sprintf("%s/token/%d", base, user))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint: %s", resp.Status)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func waitFor(ctx context.Context, ctrl *controller.Controller, what string, cond func(controller.View) bool) controller.View {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		v, err := ctrl.View(ctx)
		if err == nil && cond(v) {
			return v
		}
		select {
		case <-ctx.Done():
			logger.Fatal("timed out", "waiting_for", what, "last_status", v.Session.Status)
		case <-ticker.C:
		}
	}
}
