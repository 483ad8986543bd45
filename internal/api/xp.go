package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trailhead-app/trailhead/internal/app/engine"
	"github.com/trailhead-app/trailhead/internal/app/harmony"
	"github.com/trailhead-app/trailhead/internal/app/monthly"
	"github.com/trailhead-app/trailhead/internal/domain"
)

// ─── XP API ─────────────────────────────────────────────────────────────────
// REST endpoints for the desktop UI and CLI to read and mutate the XP
// economy.
//
// GET  /api/xp/total               — committed + cached totals
// GET  /api/xp/level               — level, progress, title
// GET  /api/xp/summary             — today's per-category aggregate
// POST /api/xp/grant               — propose a grant
// POST /api/xp/revoke              — propose a revoke
// GET  /api/xp/harmony             — harmony streak scan
// GET  /api/xp/multiplier          — active multiplier (if any)
// POST /api/xp/multiplier/activate — open a multiplier window
// POST /api/challenges/monthly/award — score and pay a monthly completion

// XPAPI holds references to the economy services.
type XPAPI struct {
	Engine  *engine.Engine
	Harmony *harmony.Service
	Monthly *monthly.Calculator
}

// HandleTotal returns the committed and cached totals.
// GET /api/xp/total
func (x *XPAPI) HandleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := x.Engine.TotalXP()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_xp":  total,
		"cached_xp": x.Engine.Coordinator().CachedTotal(),
	})
}

// HandleLevel returns the current level and XP progress.
// GET /api/xp/level
func (x *XPAPI) HandleLevel(w http.ResponseWriter, r *http.Request) {
	state, err := x.Engine.State()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	info := domain.LevelForXP(state.TotalXP)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level":        info.Level,
		"total_xp":     state.TotalXP,
		"xp_to_next":   info.XPToNext,
		"progress_pct": info.Progress * 100,
		"is_milestone": info.IsMilestone,
		"title":        domain.TitleForLevel(info.Level),
	})
}

// HandleSummary returns today's per-category aggregate.
// GET /api/xp/summary
func (x *XPAPI) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := x.Engine.DailySummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleGrant proposes a grant.
// POST /api/xp/grant
func (x *XPAPI) HandleGrant(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGrantRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, x.Engine.GrantXP(req))
}

// HandleRevoke proposes a revoke.
// POST /api/xp/revoke
func (x *XPAPI) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeGrantRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, x.Engine.RevokeXP(req))
}

func decodeGrantRequest(w http.ResponseWriter, r *http.Request) (engine.GrantRequest, bool) {
	var req engine.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return req, false
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return req, false
	}
	return req, true
}

// HandleHarmony returns the current harmony streak scan.
// GET /api/xp/harmony
func (x *XPAPI) HandleHarmony(w http.ResponseWriter, r *http.Request) {
	if x.Harmony == nil {
		writeError(w, http.StatusServiceUnavailable, "harmony not initialized")
		return
	}

	streak, err := x.Harmony.Streak()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reason, err := x.Harmony.CanActivate(domain.MultiplierHarmony)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_days":    streak.CurrentDays,
		"longest_days":    streak.LongestDays,
		"qualifying_days": streak.QualifyingDays,
		"can_activate":    reason == "",
		"blocked_reason":  reason,
	})
}

// HandleMultiplier returns the active multiplier, if any.
// GET /api/xp/multiplier
func (x *XPAPI) HandleMultiplier(w http.ResponseWriter, r *http.Request) {
	m, err := x.Engine.ActiveMultiplier()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":     true,
		"multiplier": m,
		"expires_in": time.Until(m.ExpiresAt).String(),
	})
}

// HandleActivateMultiplier opens a multiplier window.
// POST /api/xp/multiplier/activate
func (x *XPAPI) HandleActivateMultiplier(w http.ResponseWriter, r *http.Request) {
	if x.Harmony == nil {
		writeError(w, http.StatusServiceUnavailable, "harmony not initialized")
		return
	}

	var body struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	source := domain.MultiplierSource(body.Source)
	if source == "" {
		source = domain.MultiplierHarmony
	}

	res, err := x.Harmony.Activate(source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Activated {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMonthlyAward scores a monthly challenge completion and pays the
// reward.
// POST /api/challenges/monthly/award
func (x *XPAPI) HandleMonthlyAward(w http.ResponseWriter, r *http.Request) {
	if x.Monthly == nil {
		writeError(w, http.StatusServiceUnavailable, "monthly rewards not initialized")
		return
	}

	var body struct {
		Challenge domain.MonthlyChallenge  `json:"challenge"`
		Progress  domain.ChallengeProgress `json:"progress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Challenge.ID == "" || body.Challenge.Category == "" {
		writeError(w, http.StatusBadRequest, "challenge id and category are required")
		return
	}
	if body.Challenge.StarLevel < 1 || body.Challenge.StarLevel > 5 {
		writeError(w, http.StatusBadRequest, "star_level must be 1-5")
		return
	}

	breakdown, err := x.Monthly.Award(body.Challenge, body.Progress)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}
