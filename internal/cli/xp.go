package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailhead-app/trailhead/internal/daemon"
)

// ─── XP CLI ─────────────────────────────────────────────────────────────────
// These commands talk to the running daemon over its local HTTP API.

func init() {
	rootCmd.AddCommand(xpCmd)
	xpCmd.AddCommand(xpStatusCmd)
	xpCmd.AddCommand(xpGrantCmd)
	xpCmd.AddCommand(xpSummaryCmd)
	xpCmd.AddCommand(xpMultiplierCmd)

	xpGrantCmd.Flags().Int64P("amount", "a", 0, "XP amount to grant")
	xpGrantCmd.Flags().StringP("source", "s", "", "Grant source (habit, journal, goal_progress, ...)")
	xpGrantCmd.Flags().String("source-id", "", "Entity id the grant belongs to")
	xpGrantCmd.Flags().StringP("description", "d", "", "Grant description")
	xpMultiplierCmd.Flags().Bool("activate", false, "Attempt to activate the harmony multiplier")
}

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Inspect and exercise the XP economy",
}

// ─── xp status ──────────────────────────────────────────────────────────────

var xpStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show total XP and level",
	RunE:  runXPStatus,
}

func runXPStatus(cmd *cobra.Command, args []string) error {
	var level struct {
		Level       int     `json:"level"`
		TotalXP     int64   `json:"total_xp"`
		XPToNext    int64   `json:"xp_to_next"`
		ProgressPct float64 `json:"progress_pct"`
		Title       string  `json:"title"`
	}
	if err := apiGet("/api/xp/level", &level); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Level:    %d — %s\n", level.Level, level.Title)
	fmt.Fprintf(os.Stdout, "Total XP: %d\n", level.TotalXP)
	fmt.Fprintf(os.Stdout, "To next:  %d XP (%.0f%% through this level)\n", level.XPToNext, level.ProgressPct)
	return nil
}

// ─── xp grant ───────────────────────────────────────────────────────────────

var xpGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Propose an XP grant",
	RunE:  runXPGrant,
}

func runXPGrant(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetInt64("amount")
	source, _ := cmd.Flags().GetString("source")
	sourceID, _ := cmd.Flags().GetString("source-id")
	description, _ := cmd.Flags().GetString("description")

	if amount <= 0 {
		return fmt.Errorf("a positive --amount is required")
	}
	if source == "" {
		return fmt.Errorf("--source is required")
	}

	var result struct {
		Success       bool   `json:"success"`
		Reason        string `json:"reason"`
		AmountGranted int64  `json:"amount_granted"`
		TotalXP       int64  `json:"total_xp"`
		LeveledUp     bool   `json:"leveled_up"`
		NewLevel      int    `json:"new_level"`
		Batched       bool   `json:"batched"`
	}
	err := apiPost("/api/xp/grant", map[string]interface{}{
		"amount":      amount,
		"source":      source,
		"source_id":   sourceID,
		"description": description,
	}, &result)
	if err != nil {
		return err
	}

	if !result.Success {
		fmt.Fprintf(os.Stdout, "Rejected: %s\n", result.Reason)
		return nil
	}
	if result.Batched {
		fmt.Fprintf(os.Stdout, "Queued +%d XP (batched), total ≈ %d\n", result.AmountGranted, result.TotalXP)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Granted +%d XP, total %d\n", result.AmountGranted, result.TotalXP)
	if result.LeveledUp {
		fmt.Fprintf(os.Stdout, "Level up! Now level %d\n", result.NewLevel)
	}
	return nil
}

// ─── xp summary ─────────────────────────────────────────────────────────────

var xpSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show today's XP by category",
	RunE:  runXPSummary,
}

func runXPSummary(cmd *cobra.Command, args []string) error {
	var summary struct {
		Date             string `json:"date"`
		TotalXP          int64  `json:"total_xp"`
		HabitXP          int64  `json:"habit_xp"`
		JournalXP        int64  `json:"journal_xp"`
		GoalXP           int64  `json:"goal_xp"`
		AchievementXP    int64  `json:"achievement_xp"`
		TransactionCount int    `json:"transaction_count"`
	}
	if err := apiGet("/api/xp/summary", &summary); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s — %d XP across %d transactions\n", summary.Date, summary.TotalXP, summary.TransactionCount)
	fmt.Fprintf(os.Stdout, "  habits:       %d\n", summary.HabitXP)
	fmt.Fprintf(os.Stdout, "  journal:      %d\n", summary.JournalXP)
	fmt.Fprintf(os.Stdout, "  goals:        %d\n", summary.GoalXP)
	fmt.Fprintf(os.Stdout, "  achievements: %d\n", summary.AchievementXP)
	return nil
}

// ─── xp multiplier ──────────────────────────────────────────────────────────

var xpMultiplierCmd = &cobra.Command{
	Use:   "multiplier",
	Short: "Show or activate the XP multiplier",
	RunE:  runXPMultiplier,
}

func runXPMultiplier(cmd *cobra.Command, args []string) error {
	activate, _ := cmd.Flags().GetBool("activate")

	if activate {
		var res struct {
			Activated bool   `json:"activated"`
			Reason    string `json:"reason"`
			BonusXP   int64  `json:"bonus_xp"`
		}
		if err := apiPost("/api/xp/multiplier/activate", map[string]string{"source": "harmony"}, &res); err != nil {
			return err
		}
		if !res.Activated {
			fmt.Fprintf(os.Stdout, "Not activated: %s\n", res.Reason)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Multiplier active! +%d XP bonus\n", res.BonusXP)
		return nil
	}

	var mult struct {
		Active     bool   `json:"active"`
		ExpiresIn  string `json:"expires_in"`
		Multiplier struct {
			Factor float64 `json:"factor"`
			Source string  `json:"source"`
		} `json:"multiplier"`
	}
	if err := apiGet("/api/xp/multiplier", &mult); err != nil {
		return err
	}
	if !mult.Active {
		fmt.Fprintln(os.Stdout, "No multiplier active")
		return nil
	}
	fmt.Fprintf(os.Stdout, "×%.2f (%s), expires in %s\n", mult.Multiplier.Factor, mult.Multiplier.Source, mult.ExpiresIn)
	return nil
}

// ─── HTTP helpers ───────────────────────────────────────────────────────────

func daemonBaseURL() string {
	cfg, err := daemon.Load(daemon.ConfigPath())
	if err != nil {
		cfg = daemon.DefaultConfig()
	}
	return "http://" + cfg.API.Addr()
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func apiGet(path string, out interface{}) error {
	resp, err := httpClient.Get(daemonBaseURL() + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? (trailhead serve): %w", err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, out)
}

func apiPost(path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(daemonBaseURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("is the daemon running? (trailhead serve): %w", err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, out)
}

func decodeAPIResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 500 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("daemon error: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
