package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app = kingpin.New("syncd", "Sync and permission coordination agent for the HRIS admin UI")

	runCmd = app.Command("run", "Run the agent").Default()

	statusCmd   = app.Command("status", "Show the sync badge of a running agent")
	statusAgent = statusCmd.Flag("agent", "Address of the running agent").Envar("SYNCD_LOCAL_ADDR").Default("127.0.0.1:7070").String()

	syncCmd   = app.Command("sync", "Ask a running agent to sync queued actions now")
	syncAgent = syncCmd.Flag("agent", "Address of the running agent").Envar("SYNCD_LOCAL_ADDR").Default("127.0.0.1:7070").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case runCmd.FullCommand():
		err = run(ctx)
	case statusCmd.FullCommand():
		err = status(ctx, *statusAgent)
	case syncCmd.FullCommand():
		err = triggerSync(ctx, *syncAgent)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type agentResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func callAgent(ctx context.Context, method, addr, path string) (agentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, "http://"+addr+path, nil)
	if err != nil {
		return agentResponse{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return agentResponse{}, fmt.Errorf("agent not reachable at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return agentResponse{}, fmt.Errorf("decode agent response: %w", err)
	}
	if !out.Success {
		if out.Error != nil {
			return out, fmt.Errorf("%s", out.Error.Message)
		}
		return out, fmt.Errorf("agent returned %s", resp.Status)
	}
	return out, nil
}

func status(ctx context.Context, addr string) error {
	resp, err := callAgent(ctx, http.MethodGet, addr, "/api/v1/status")
	if err != nil {
		return err
	}

	var st struct {
		Badge struct {
			State   string `json:"state"`
			Label   string `json:"label"`
			Count   int    `json:"count"`
			Online  bool   `json:"online"`
			Syncing bool   `json:"syncing"`
		} `json:"badge"`
		Conflicts int `json:"open_conflicts"`
	}
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	connectivity := "online"
	if !st.Badge.Online {
		connectivity = "offline"
	}
	fmt.Printf("Connectivity:   %s\n", connectivity)
	fmt.Printf("Queued actions: %d\n", st.Badge.Count)
	fmt.Printf("Badge:          %s", st.Badge.State)
	if st.Badge.Label != "" {
		fmt.Printf(" (%s)", st.Badge.Label)
	}
	fmt.Println()
	if st.Badge.Syncing {
		fmt.Println("Sync in progress")
	}
	fmt.Printf("Open conflicts: %d\n", st.Conflicts)
	return nil
}

func triggerSync(ctx context.Context, addr string) error {
	resp, err := callAgent(ctx, http.MethodPost, addr, "/api/v1/sync")
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}
