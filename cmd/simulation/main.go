package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"resonance-field-be/internal/config"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/memory"
	"resonance-field-be/internal/service"

	"github.com/fatih/color"
)

// consoleDelivery prints every feed frame instead of pushing it to
// websockets, so the whole protocol can be watched in a terminal.
type consoleDelivery struct{}

func (consoleDelivery) Broadcast(exclude string, frame []byte) {
	printFrame("broadcast", exclude, frame)
}

func (consoleDelivery) Send(sessionId string, frame []byte) {
	printFrame("to "+shorten(sessionId), "", frame)
}

func printFrame(route, exclude string, frame []byte) {
	var ev dto.Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return
	}
	tag := color.CyanString("[%s]", ev.Type)
	if exclude != "" {
		route += " -" + shorten(exclude)
	}
	fmt.Printf("%s %s\n", tag, color.HiBlackString(route))
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	fmt.Println("=== Resonance Field Simulation ===")

	cfg := config.Load()
	cfg.Field.MaxSessions = 10

	sysLogger := logger.NewIsolatedLogger("logs/simulation.log")
	sessionRepo := memory.NewSessionRepository()
	groupRepo := memory.NewGroupRepository()
	registry := service.NewDisconnectRegistry()
	feed := service.NewDirectFeed(consoleDelivery{}, sysLogger)
	capacity := service.NewCapacityService(sessionRepo, cfg.Field.MaxSessions, cfg.Field.WarningThreshold, sysLogger)
	resonance := service.NewResonanceService(sessionRepo, feed, sysLogger)
	groups := service.NewGroupService(sessionRepo, groupRepo, feed, registry, sysLogger)
	sessions := service.NewSessionService(sessionRepo, feed, resonance, capacity, registry, sysLogger, cfg.Field)

	ctx := context.Background()

	step := func(label string) { color.Yellow("\n--- %s ---", label) }

	step("three participants join")
	affinities := []string{"healing", "unity", "healing"}
	var ids []string
	for i, affinity := range affinities {
		s, err := sessions.Connect(ctx, &dto.ConnectRequest{
			DisplayName: fmt.Sprintf("wanderer-%d", i+1),
			Affinity:    affinity,
		})
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		ids = append(ids, s.Id)
		color.Green("joined: %s (%s)", shorten(s.Id), affinity)
	}

	step("resonance forms")
	sessions.Resonate(ctx, ids[0], ids[1])
	sessions.Resonate(ctx, ids[1], ids[0]) // now mutual
	sessions.Resonate(ctx, ids[2], ids[0]) // one-directional
	for _, c := range resonance.Current() {
		arrow := "->"
		if c.Mutual {
			arrow = "<->"
		}
		color.Green("connection %s %s %s", shorten(c.A), arrow, shorten(c.B))
	}

	step("a gathering forms")
	g, err := groups.Create(ctx, ids[0], ids[1])
	if err != nil {
		log.Fatalf("group create: %v", err)
	}
	color.Green("group %s seeded, dominant=%s", shorten(g.Id), g.DominantAffinity)

	if _, err := groups.AcceptInvite(ctx, ids[1], g.Id); err != nil {
		log.Fatalf("accept: %v", err)
	}
	joined, err := groups.JoinOpen(ctx, ids[2], g.Id)
	if err != nil {
		log.Fatalf("join: %v", err)
	}
	color.Green("group now has %d active members, dominant=%s", joined.ActiveCount(), joined.DominantAffinity)

	step("one participant vanishes mid-session")
	sessions.Disconnect(ctx, ids[2])

	step("the gathering dissolves")
	groups.Leave(ctx, ids[1])
	groups.Leave(ctx, ids[0])

	remaining, _ := groups.ListAll(ctx)
	color.Green("groups remaining: %d", len(remaining))

	time.Sleep(100 * time.Millisecond)
	fmt.Println("\ndone")
}
