// The gateway binary runs the moderation gateway: the WebSocket endpoint
// where anonymous submitters send content and moderator consoles review it,
// plus the NATS fan-out of committed effects and the PostgreSQL audit trail.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/quietpost/gateway/internal/audit"
	"github.com/quietpost/gateway/internal/ban"
	"github.com/quietpost/gateway/internal/config"
	"github.com/quietpost/gateway/internal/messaging"
	"github.com/quietpost/gateway/internal/metrics"
	"github.com/quietpost/gateway/internal/moderation"
	"github.com/quietpost/gateway/internal/projection"
	"github.com/quietpost/gateway/internal/protocol"
	"github.com/quietpost/gateway/internal/queue"
	"github.com/quietpost/gateway/internal/ratelimit"
	"github.com/quietpost/gateway/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// --- NATS ---
	natsConfig := messaging.DefaultConfig()
	natsConfig.URL = cfg.NATSURL
	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis (ban store) ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	banStore := ban.NewStore(redisClient)

	// --- PostgreSQL (audit trail) ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := audit.Migrate(db); err != nil {
		log.Fatalf("failed to migrate audit schema: %v", err)
	}
	auditStore := audit.NewStore(db)

	// --- Core ---
	store := queue.NewStore(cfg.QueueCapacity)
	limiter := ratelimit.NewLimiter(ratelimit.Rule{
		Limit:  cfg.SubmitLimit,
		Window: cfg.SubmitWindow,
	})
	svc := moderation.NewService(cfg.Moderators, store, limiter, cfg.PreviewLength)

	log.Printf("quietpost gateway starting")
	log.Printf("  listen_addr:    %s", cfg.ListenAddr)
	log.Printf("  moderators:     %d configured", len(cfg.Moderators))
	log.Printf("  queue_capacity: %d", cfg.QueueCapacity)
	log.Printf("  submit_limit:   %d per %s", cfg.SubmitLimit, cfg.SubmitWindow)
	log.Printf("  nats_url:       %s", cfg.NATSURL)
	log.Printf("  redis_addr:     %s", cfg.RedisAddr)

	// Declare server early so closures can capture it.
	var server *ws.Server

	// deliverReview renders a review event for one console, reusing the
	// console's existing view ref or minting a new one. Terminal events are
	// skipped for consoles that never saw the item.
	deliverReview := func(conn *ws.Connection, ev messaging.ReviewEvent) {
		actor := conn.ActorID()

		ref := ev.Refs[actor]
		if ref == "" {
			ref = store.GetViewRef(ev.ID, actor)
		}
		if ref == "" {
			if ev.Terminal {
				return
			}
			ref = uuid.New().String()
			store.SetViewRef(ev.ID, actor, ref)
		}

		data, err := protocol.NewServerMessage(protocol.TypeReview, protocol.ReviewMsg{
			Ref:      ref,
			ID:       ev.ID,
			Headline: ev.Headline,
			Body:     ev.Body,
			Actions:  ev.Actions,
		})
		if err != nil {
			log.Printf("[review] build failed id=%d: %v", ev.ID, err)
			return
		}
		if err := conn.WriteMessage(data); err != nil {
			log.Printf("[review] send failed session=%s id=%d: %v", conn.ID, ev.ID, err)
		}
	}

	// publishReview broadcasts a review event to every gateway instance
	// (including this one, via NATS loopback) for console re-rendering.
	publishReview := func(ev messaging.ReviewEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[review] marshal failed id=%d: %v", ev.ID, err)
			return
		}
		if err := natsClient.PublishReviewUpdate(data); err != nil {
			log.Printf("[review] publish failed id=%d: %v", ev.ID, err)
		}
	}

	reviewEventFor := func(id int64, view projection.View) messaging.ReviewEvent {
		return messaging.ReviewEvent{
			ID:       id,
			Headline: view.Headline,
			Body:     view.Body,
			Actions:  view.Actions,
		}
	}

	sendError := func(conn *ws.Connection, code, message string) {
		data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
			Code:    code,
			Message: message,
		})
		if err != nil {
			return
		}
		_ = conn.WriteMessage(data)
	}

	send := func(conn *ws.Connection, msgType string, payload interface{}) {
		data, err := protocol.NewServerMessage(msgType, payload)
		if err != nil {
			log.Printf("[send] build %s failed session=%s: %v", msgType, conn.ID, err)
			return
		}
		if err := conn.WriteMessage(data); err != nil {
			log.Printf("[send] %s failed session=%s: %v", msgType, conn.ID, err)
		}
	}

	// recordDecision writes the audit row and, for rejected content that was
	// flagged by screening, escalates the submitter's strike count.
	recordDecision := func(actorID string, res *moderation.Result) {
		snap := res.Snapshot
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		err := auditStore.RecordDecision(ctx, &audit.Decision{
			SubmissionID: snap.ID,
			SubmitterID:  snap.SubmitterID,
			ModeratorID:  actorID,
			Outcome:      res.Notice.Outcome,
			Kind:         snap.Content.Kind,
			Body:         snap.PublishBody(),
			Edited:       snap.Edited,
			ScreenFlag:   snap.ScreenFlag,
			SubmittedAt:  snap.SubmittedAt,
		})
		if err != nil {
			log.Printf("[audit] record decision id=%d: %v", snap.ID, err)
		}

		if res.Notice.Outcome == moderation.OutcomeRejected && snap.ScreenFlag != "" {
			if dur, err := banStore.Strike(ctx, snap.SubmitterID, snap.ScreenFlag); err != nil {
				log.Printf("[ban] strike failed submitter=%s: %v", snap.SubmitterID, err)
			} else {
				log.Printf("[ban] strike submitter=%s flag=%s duration=%s", snap.SubmitterID, snap.ScreenFlag, dur)
			}
		}
	}

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// identify — promote a connection to a moderator console
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeIdentify, func(conn *ws.Connection, msg interface{}) {
		idMsg, ok := msg.(protocol.IdentifyMsg)
		if !ok {
			return
		}

		if idMsg.Secret != cfg.ConsoleSecret || !svc.IsModerator(idMsg.ActorID) {
			log.Printf("identify rejected session=%s actor=%s", conn.ID, idMsg.ActorID)
			sendError(conn, "unauthorized", "not a moderator")
			return
		}

		conn.SetModerator(idMsg.ActorID)
		send(conn, protocol.TypeIdentified, protocol.IdentifiedMsg{ActorID: idMsg.ActorID})
		log.Printf("identify session=%s actor=%s", conn.ID, idMsg.ActorID)

		// Catch the console up on everything already pending.
		for _, snap := range store.List() {
			pos, _ := store.Position(snap.ID)
			view := projection.Project(snap, pos, store.Len(), cfg.PreviewLength)
			deliverReview(conn, reviewEventFor(snap.ID, view))
		}
	})

	// -----------------------------------------------------------------------
	// submit — admit a new submission into the moderation queue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSubmit, func(conn *ws.Connection, msg interface{}) {
		subMsg, ok := msg.(protocol.SubmitMsg)
		if !ok {
			return
		}
		submitterID := conn.ActorID()

		// Ban check runs before anything else. Redis being down fails open:
		// moderation still screens everything that gets through.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		banned, remaining, reason, err := banStore.IsBanned(ctx, submitterID)
		cancel()
		if err != nil {
			log.Printf("[ban] check failed submitter=%s: %v", submitterID, err)
		} else if banned {
			metrics.SubmissionsTotal.WithLabelValues("banned").Inc()
			send(conn, protocol.TypeBanned, protocol.BannedMsg{Duration: remaining, Reason: reason})
			return
		}

		content := queue.Content{
			Kind:    subMsg.Kind,
			Text:    subMsg.Text,
			FileRef: subMsg.FileRef,
			Caption: subMsg.Caption,
		}

		acc, err := svc.SubmitContent(submitterID, content, time.Now())
		if err != nil {
			var rl *moderation.RateLimitedError
			switch {
			case errors.As(err, &rl):
				send(conn, protocol.TypeRateLimited, protocol.RateLimitedMsg{
					RetryAfter: int(rl.Wait.Seconds()),
				})
			case errors.Is(err, queue.ErrFull):
				send(conn, protocol.TypeQueueFull, protocol.QueueFullMsg{
					Capacity: store.Capacity(),
				})
			case errors.Is(err, moderation.ErrBadRequest):
				sendError(conn, "bad_request", err.Error())
			default:
				log.Printf("submit failed session=%s: %v", conn.ID, err)
				sendError(conn, "internal", "submission failed")
			}
			return
		}

		send(conn, protocol.TypeAccepted, protocol.AcceptedMsg{
			ID:        acc.ID,
			Position:  acc.Position,
			QueueSize: acc.QueueSize,
		})
		log.Printf("submit accepted session=%s id=%d kind=%s position=%d",
			conn.ID, acc.ID, subMsg.Kind, acc.Position)

		// Fan the fresh item out to every moderator console.
		if snap, err := store.Get(acc.ID); err == nil {
			pos, _ := store.Position(snap.ID)
			view := projection.Project(snap, pos, store.Len(), cfg.PreviewLength)
			publishReview(reviewEventFor(snap.ID, view))
		}
	})

	// -----------------------------------------------------------------------
	// action — one moderator action on a queued submission
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeAction, func(conn *ws.Connection, msg interface{}) {
		actMsg, ok := msg.(protocol.ActionMsg)
		if !ok {
			return
		}

		action, err := moderation.ParseAction(actMsg.Action)
		if err != nil {
			sendError(conn, "bad_request", err.Error())
			return
		}

		// Capture view refs up front: a terminal transition removes the
		// store entry together with its refs.
		refs := store.ViewRefs(actMsg.ID)

		res, err := svc.ModeratorAction(conn.ActorID(), action, actMsg.ID)
		if err != nil {
			switch {
			case errors.Is(err, moderation.ErrUnauthorized):
				sendError(conn, "unauthorized", "not a moderator")
			case errors.Is(err, queue.ErrNotFound):
				// A concurrent moderator got there first.
				deliverReview(conn, messaging.ReviewEvent{
					ID:       actMsg.ID,
					Headline: projection.AlreadyHandled(actMsg.ID).Headline,
					Terminal: true,
					Refs:     refs,
				})
			case errors.Is(err, moderation.ErrBadRequest):
				sendError(conn, "bad_request", err.Error())
			default:
				log.Printf("action %s failed session=%s id=%d: %v", actMsg.Action, conn.ID, actMsg.ID, err)
				sendError(conn, "internal", "action failed")
			}
			return
		}

		log.Printf("action %s session=%s actor=%s id=%d decided=%v",
			actMsg.Action, conn.ID, conn.ActorID(), actMsg.ID, res.Decided)

		if !res.Decided {
			// Non-terminal actions re-render only the acting console.
			deliverReview(conn, reviewEventFor(actMsg.ID, res.View))
			return
		}

		// Terminal: replace the view on every console, notify the
		// submitter, and hand approved content to the publisher.
		ev := reviewEventFor(actMsg.ID, res.View)
		ev.Terminal = true
		ev.Refs = refs
		publishReview(ev)

		noticeData, err := protocol.NewServerMessage(protocol.TypeOutcome, protocol.OutcomeMsg{
			ID:      actMsg.ID,
			Outcome: res.Notice.Outcome,
		})
		if err == nil {
			if err := natsClient.PublishNotice(res.Notice.SubmitterID, noticeData); err != nil {
				log.Printf("[notice] publish failed submitter=%s: %v", res.Notice.SubmitterID, err)
			}
		}

		if res.Publish != nil {
			pubData, err := json.Marshal(messaging.PublishEvent{
				SubmissionID: res.Publish.SubmissionID,
				Kind:         res.Publish.Content.Kind,
				Body:         res.Publish.Body,
				FileRef:      res.Publish.Content.FileRef,
			})
			if err == nil {
				if err := natsClient.PublishApproved(pubData); err != nil {
					log.Printf("[publish] publish failed id=%d: %v", res.Publish.SubmissionID, err)
				}
			}
		}

		recordDecision(conn.ActorID(), res)
	})

	// -----------------------------------------------------------------------
	// edit_input — free-text content override for an active edit session
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeEditInput, func(conn *ws.Connection, msg interface{}) {
		editMsg, ok := msg.(protocol.EditInputMsg)
		if !ok {
			return
		}

		id, res, err := svc.ModeratorTextInput(conn.ActorID(), editMsg.Text)
		if err != nil {
			switch {
			case errors.Is(err, moderation.ErrUnauthorized):
				sendError(conn, "unauthorized", "not a moderator")
			case errors.Is(err, queue.ErrNotFound):
				// The target was decided while the moderator was typing.
				sendError(conn, "already_handled", "submission was decided while editing")
			default:
				sendError(conn, "no_edit_session", "no active edit session")
			}
			return
		}

		log.Printf("edit applied actor=%s id=%d", conn.ActorID(), id)

		// The override changes the preview on every console.
		publishReview(reviewEventFor(id, res.View))
	})

	// -----------------------------------------------------------------------
	// queue_list — pending-queue listing for moderator consoles
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeQueueList, func(conn *ws.Connection, msg interface{}) {
		entries, err := svc.ListPending(conn.ActorID())
		if err != nil {
			sendError(conn, "unauthorized", "not a moderator")
			return
		}

		rows := make([]protocol.QueueEntry, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, protocol.QueueEntry{
				ID:        e.ID,
				Submitter: e.SubmitterDisplay,
				Kind:      e.Kind,
				Preview:   e.Preview,
			})
		}
		send(conn, protocol.TypeQueueEntries, protocol.QueueEntriesMsg{
			Entries:  rows,
			Total:    store.Len(),
			Capacity: store.Capacity(),
		})
	})

	wsConfig := ws.DefaultServerConfig()
	wsConfig.ListenAddr = cfg.ListenAddr
	server = ws.NewServer(wsConfig, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	// Review updates fan back in over NATS so consoles on every gateway
	// instance re-render, including the instance that published them.
	if err := natsClient.SubscribeReviewUpdates(func(data []byte) {
		var ev messaging.ReviewEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("[review-sub] unmarshal error: %v", err)
			return
		}
		for _, conn := range server.Connections().Moderators() {
			deliverReview(conn, ev)
		}
	}); err != nil {
		log.Fatalf("failed to subscribe to review updates: %v", err)
	}

	// Outcome notices are delivered to whichever instance holds the
	// submitter's connection. The payload is already a wire-ready frame.
	if err := natsClient.SubscribeAllNotices(func(submitterID string, data []byte) {
		if conn := server.Connections().Get(submitterID); conn != nil {
			if err := conn.WriteMessage(data); err != nil {
				log.Printf("[notice-sub] send failed submitter=%s: %v", submitterID, err)
			}
		}
	}); err != nil {
		log.Fatalf("failed to subscribe to notices: %v", err)
	}

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		if err := db.Close(); err != nil {
			log.Printf("postgres close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
