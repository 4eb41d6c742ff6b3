package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/tictactoe-live/internal/client"
)

// interruptible returns a context cancelled on Ctrl+C or SIGTERM
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openSession connects the push channel with the configured token
func openSession(ctx context.Context) (*client.Session, error) {
	sessionCfg := client.DefaultSessionConfig(api.ChannelURL())
	sessionCfg.Logger = cfg.Logger()

	session := client.NewSession(sessionCfg)
	if err := session.Connect(ctx, cfg.Token); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}
