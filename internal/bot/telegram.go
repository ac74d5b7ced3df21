package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"coin-scout/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// PositionLister reads open positions.
type PositionLister interface {
	ListActive(ctx context.Context) ([]domain.Position, error)
}

// PipelineRunner executes one retrieval-to-position cycle.
type PipelineRunner interface {
	Run(ctx context.Context) (domain.PipelineRunResult, error)
}

func StartTelegramBot(positions PositionLister, pipeline PipelineRunner) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/positions", func(c tele.Context) error {
		if positions == nil {
			return c.Send("Position store unavailable")
		}
		active, err := positions.ListActive(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching positions: %v", err))
		}
		if len(active) == 0 {
			return c.Send("No active positions")
		}

		var sb strings.Builder
		total := 0.0
		for _, p := range active {
			sb.WriteString(fmt.Sprintf(
				"%s\nEntry: $%.4f | Size: $%.2f\nStop: $%.4f | T1: $%.4f | T2: $%.4f | Days: %d\n\n",
				p.Symbol, p.EntryPrice, p.SizeUSD, p.StopLoss, p.Target1, p.Target2, p.Days,
			))
			total += p.SizeUSD
		}
		sb.WriteString(fmt.Sprintf("Total: $%.2f across %d positions", total, len(active)))
		return c.Send(sb.String())
	})

	b.Handle("/run", func(c tele.Context) error {
		if pipeline == nil {
			return c.Send("Pipeline unavailable")
		}
		if err := c.Send("Running pipeline, this can take a minute..."); err != nil {
			return err
		}
		result, err := pipeline.Run(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Pipeline error: %v", err))
		}
		if result.Token == "" {
			return c.Send("Pipeline ran but no token surfaced")
		}
		msg := fmt.Sprintf("Top token: %s", result.Token)
		if rec := result.Recommendation; rec != nil {
			msg += fmt.Sprintf(
				"\n%s entry $%.4f size $%.2f\nStop $%.4f | T1 $%.4f | T2 $%.4f | %d days\n%s",
				rec.Symbol, rec.Entry, rec.SizeUSD, rec.StopLoss, rec.Target1, rec.Target2, rec.Days, rec.Rationale,
			)
		}
		return c.Send(msg)
	})

	log.Println("Telegram bot started")
	go b.Start()
}
