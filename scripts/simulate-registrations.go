package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

type registerRequest struct {
	UserID        string `json:"user_id"`
	AttendeeCount int    `json:"attendee_count"`
	Notes         string `json:"notes,omitempty"`
}

type registerResult struct {
	Kind         string `json:"kind"`
	Registration *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"registration,omitempty"`
	WaitlistEntry *struct {
		ID       string `json:"id"`
		Position int64  `json:"position"`
	} `json:"waitlist_entry,omitempty"`
}

type eventStats struct {
	TotalActive     int  `json:"total_active"`
	ConfirmedCount  int  `json:"confirmed_count"`
	WaitlistedCount int  `json:"waitlisted_count"`
	Capacity        *int `json:"capacity,omitempty"`
}

var (
	baseURL     = flag.String("url", "http://localhost:8084", "Registration service base URL")
	eventID     = flag.String("event", "", "Event ID (required)")
	numUsers    = flag.Int("users", 300, "Number of users to sign up (200-500)")
	concurrency = flag.Int("concurrency", 20, "Number of concurrent signup workers")
	cancelRate  = flag.Float64("cancel-rate", 0.1, "Fraction of registered users cancelling per minute (0.0-1.0)")
	maxParty    = flag.Int("max-party", 4, "Maximum attendee count per signup")
	simulate    = flag.Bool("simulate", false, "Enable continuous simulation with random cancellations")
)

func main() {
	flag.Parse()

	if *eventID == "" {
		fmt.Println("Error: --event flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if *numUsers < 200 || *numUsers > 500 {
		fmt.Println("Warning: Recommended user count is 200-500, got:", *numUsers)
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 10 * time.Second}

	// Test connection
	if err := ping(ctx, client); err != nil {
		fmt.Printf("Failed to reach service at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Connected to registration service at %s\n", *baseURL)

	registered, waitlisted := signupUsers(ctx, client)

	fmt.Printf("\n✅ Signed up %d users for event %s\n", len(registered)+len(waitlisted), *eventID)
	fmt.Printf("📊 Registered: %d | Waitlisted: %d\n", len(registered), len(waitlisted))
	printStats(ctx, client)

	if *simulate {
		fmt.Printf("\n🎬 Starting continuous simulation...\n")
		fmt.Printf("   Cancellation rate: %.1f%% per minute\n", *cancelRate*100)
		fmt.Printf("   Press Ctrl+C to stop\n\n")
		runSimulation(ctx, client, registered)
	} else {
		fmt.Println("\n💡 Tip: Use --simulate flag to enable random cancellations and promotions")
	}
}

// signupUsers fires concurrent registration requests and splits the users by
// outcome. The concurrency is the point: with a capacity-bounded event the
// service must admit exactly up to capacity no matter how hard we race it.
func signupUsers(ctx context.Context, client *http.Client) (registered, waitlisted []string) {
	fmt.Printf("\n🚀 Signing up %d users with %d workers...\n", *numUsers, *concurrency)
	startTime := time.Now()

	var mu sync.Mutex
	var done int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	for i := 0; i < *numUsers; i++ {
		userID := fmt.Sprintf("demo-user-%d", i+1)
		g.Go(func() error {
			res, err := register(gctx, client, userID)

			mu.Lock()
			defer mu.Unlock()
			done++
			if err != nil {
				fmt.Printf("❌ %s: %v\n", userID, err)
			} else {
				switch res.Kind {
				case "registered":
					registered = append(registered, userID)
				case "waitlisted":
					waitlisted = append(waitlisted, userID)
				}
			}
			if done%50 == 0 || done == *numUsers {
				fmt.Printf("   Progress: %d/%d users signed up\n", done, *numUsers)
			}
			return nil
		})
	}
	g.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("⏱️  Completed in %v (%.0f signups/sec)\n", elapsed, float64(*numUsers)/elapsed.Seconds())

	return registered, waitlisted
}

func runSimulation(ctx context.Context, client *http.Client, registered []string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	active := make(map[string]bool, len(registered))
	for _, id := range registered {
		active[id] = true
	}

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	cancelTicker := time.NewTicker(1 * time.Minute)
	defer cancelTicker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\n🛑 Simulation stopped")
			printStats(ctx, client)
			return

		case <-statsTicker.C:
			stats, err := fetchStats(ctx, client)
			if err != nil {
				continue
			}
			fmt.Printf("[%s] Active: %d | Waitlisted: %d | Confirmed: %d\n",
				time.Now().Format("15:04:05"),
				stats.TotalActive,
				stats.WaitlistedCount,
				stats.ConfirmedCount,
			)

		case <-cancelTicker.C:
			numToCancel := int(float64(len(active)) * (*cancelRate))
			if numToCancel == 0 {
				continue
			}
			cancelled := cancelRandomUsers(ctx, client, active, numToCancel)
			if cancelled > 0 {
				fmt.Printf("👋 %d users cancelled (%.1f%% rate); freed seats go to the waitlist\n",
					cancelled, *cancelRate*100)
			}
		}
	}
}

func cancelRandomUsers(ctx context.Context, client *http.Client, active map[string]bool, numToCancel int) int {
	if len(active) == 0 {
		return 0
	}

	users := make([]string, 0, len(active))
	for id := range active {
		users = append(users, id)
	}
	rand.Shuffle(len(users), func(i, j int) {
		users[i], users[j] = users[j], users[i]
	})

	cancelled := 0
	for i := 0; i < numToCancel && i < len(users); i++ {
		userID := users[i]
		if err := cancel(ctx, client, userID); err != nil {
			continue
		}
		delete(active, userID)
		cancelled++
	}

	return cancelled
}

func ping(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func register(ctx context.Context, client *http.Client, userID string) (*registerResult, error) {
	body, _ := json.Marshal(registerRequest{
		UserID:        userID,
		AttendeeCount: 1 + rand.Intn(*maxParty),
		Notes:         "Demo-Simulation/1.0",
	})

	url := fmt.Sprintf("%s/api/v1/events/%s/registrations", *baseURL, *eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var res registerResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func cancel(ctx context.Context, client *http.Client, userID string) error {
	url := fmt.Sprintf("%s/api/v1/events/%s/registrations/%s", *baseURL, *eventID, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func fetchStats(ctx context.Context, client *http.Client) (*eventStats, error) {
	url := fmt.Sprintf("%s/api/v1/events/%s/stats", *baseURL, *eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var stats eventStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func printStats(ctx context.Context, client *http.Client) {
	stats, err := fetchStats(ctx, client)
	if err != nil {
		fmt.Printf("Failed to fetch stats: %v\n", err)
		return
	}

	fmt.Println("\n📊 Event Statistics:")
	fmt.Printf("   Active Registrations: %d\n", stats.TotalActive)
	fmt.Printf("   Confirmed: %d\n", stats.ConfirmedCount)
	fmt.Printf("   Waitlisted: %d\n", stats.WaitlistedCount)
	if stats.Capacity != nil {
		fmt.Printf("   Capacity: %d\n", *stats.Capacity)
	}
}
