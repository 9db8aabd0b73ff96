package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"

	"fenrir/internal/balance"
	"fenrir/internal/config"
	"fenrir/internal/dispatcher"
	"fenrir/internal/fixedpoint"
	"fenrir/internal/matching"
	"fenrir/internal/order"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	d := dispatcher.New(cfg.Dispatcher.QueueCapacity)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error { return d.Run(t) })
	t.Go(func() error {
		runDemo(d, cfg.Demo)
		return nil
	})

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("dispatcher exited with error")
	}
}

// runDemo drives the book with cfg.ProducerCount concurrent producer
// goroutines submitting Commands to the single dispatcher at once --
// the many-producers/one-consumer model of spec.md S5 -- through the
// same Command/Response boundary a real caller would use. It is a
// demonstration harness, not a transport: a production deployment
// would replace the producers with real client-facing listeners
// submitting Commands to the same dispatcher.
func runDemo(d *dispatcher.Dispatcher, cfg config.DemoConfig) {
	var wg sync.WaitGroup
	wg.Add(cfg.ProducerCount)
	for i := 0; i < cfg.ProducerCount; i++ {
		go func(i int) {
			defer wg.Done()
			runProducer(d, i, cfg)
		}(i)
	}
	wg.Wait()

	depthReply := make(chan dispatcher.Response, 1)
	d.Submit(&dispatcher.GetDepth{Levels: 10, Reply: depthReply})
	depth := <-depthReply
	log.Info().Int("bids", len(depth.Bids)).Int("asks", len(depth.Asks)).Msg("demo: final depth")
}

// runProducer is one concurrent trader: it funds itself, rests a
// limit order on alternating sides of a common mid price (so odd and
// even producers cross each other), sweeps the book with a market
// order, then cancels whatever of its own limit order is still
// resting. Every step is a separate Command/Response round trip, so
// many producers interleave freely at the dispatcher's single queue.
func runProducer(d *dispatcher.Dispatcher, i int, cfg config.DemoConfig) {
	user := uuid.New()
	fund(d, user, balance.USD, cfg.StartingUSDMinor)
	fund(d, user, balance.BTC, cfg.StartingBTCMinor)

	side := order.Buy
	if i%2 == 1 {
		side = order.Sell
	}
	price := fixedpoint.NewPrice((50_000 + int64(i%5)) * fixedpoint.PriceScale)
	qty := fixedpoint.NewQuantity(fixedpoint.QuantityScale / 10)

	placeReply := make(chan dispatcher.Response, 1)
	d.Submit(&dispatcher.PlaceLimit{User: user, Side: side, Price: price, Qty: qty, Reply: placeReply})
	placed := <-placeReply
	logResponse("place-limit", placed)

	marketReply := make(chan dispatcher.Response, 1)
	d.Submit(&dispatcher.PlaceMarket{User: user, Side: opposite(side), Qty: qty, Reply: marketReply})
	swept := <-marketReply
	logResponse("place-market", swept)

	if placed.Order == nil {
		return
	}
	cancelReply := make(chan dispatcher.Response, 1)
	d.Submit(&dispatcher.Cancel{User: user, Order: placed.Order.ID, Reply: cancelReply})
	<-cancelReply // no-op once already filled; ignored either way
}

func opposite(s order.Side) order.Side {
	if s == order.Buy {
		return order.Sell
	}
	return order.Buy
}

func fund(d *dispatcher.Dispatcher, user uuid.UUID, currency balance.Currency, amount int64) {
	reply := make(chan dispatcher.Response, 1)
	d.Submit(&dispatcher.AddFunds{User: user, Currency: currency, Amount: amount, Reply: reply})
	<-reply
}

func logResponse(step string, res dispatcher.Response) {
	if res.Err != nil {
		log.Error().Str("step", step).Err(res.Err).Msg("demo step failed")
		return
	}
	event := log.Info().Str("step", step).Str("status", res.Status)
	if res.Status == matching.StatusFilled || res.Status == matching.StatusMatched || res.Status == matching.StatusPartial {
		event = event.Int("trades", len(res.Trades))
	}
	event.Msg("demo step")
}
