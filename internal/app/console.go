package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/prefs"
)

// errQuit signals a clean user-initiated exit from the console loop.
var errQuit = errors.New("app: quit requested")

const helpText = `Commands:
  /skip           skip the current question
  /replace        swap the current question for a different one
  /confirm        submit a short answer as-is
  /goto <n>       jump to question n
  /status         show session progress
  /voices         list available interviewer voices
  /voice <id>     switch the interviewer voice
  /history [n]    show recent interview outcomes
  /retake         redo the interview with the same setup
  /end            end the session
  /quit           exit
Anything else is treated as your answer (or setup input).`

// consoleLoop reads user input line by line and dispatches it: slash commands
// to command handlers, everything else into the state machine.
func (a *App) consoleLoop(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			if err != nil {
				return fmt.Errorf("app: read input: %w", err)
			}
			return errQuit // EOF
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if err := a.handleCommand(ctx, line); err != nil {
					return err
				}
				continue
			}
			if err := a.currentMachine().HandleInput(line); err != nil {
				if errors.Is(err, interview.ErrWrongPhase) {
					a.printf("The session has ended. Use /quit to exit.\n")
					continue
				}
				return err
			}
		}
	}
}

// handleCommand dispatches one slash command. Only errQuit propagates; every
// other problem is reported inline and the loop continues.
func (a *App) handleCommand(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	m := a.currentMachine()

	switch cmd {
	case "/quit", "/exit":
		return errQuit

	case "/help":
		a.printf("%s\n", helpText)

	case "/skip":
		a.reportErr(m.Skip())

	case "/replace":
		a.reportErr(m.ReplaceQuestion())

	case "/confirm":
		a.reportErr(m.ConfirmPendingAnswer())

	case "/goto":
		if len(args) != 1 {
			a.printf("usage: /goto <question number>\n")
			return nil
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			a.printf("usage: /goto <question number>\n")
			return nil
		}
		a.reportErr(m.Navigate(n - 1))

	case "/end":
		m.End()

	case "/retake":
		nm, err := m.Retake()
		if err != nil {
			a.reportErr(err)
			return nil
		}
		a.swapMachine(nm)

	case "/status":
		a.printStatus(m.Snapshot())

	case "/voices":
		a.listVoices(ctx)

	case "/voice":
		if len(args) != 1 {
			a.printf("usage: /voice <voice id>\n")
			return nil
		}
		a.selectVoice(ctx, args[0])

	case "/history":
		limit := a.cfg.History.RecentLimit
		if len(args) == 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		a.printHistory(ctx, limit)

	default:
		a.printf("unknown command %s — try /help\n", cmd)
	}
	return nil
}

// renderLoop turns machine events into console output and side effects
// (metrics, history persistence).
func (a *App) renderLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-a.events:
			a.render(e)
		}
	}
}

func (a *App) render(e interview.Event) {
	switch e.Type {
	case interview.EventPrompt:
		a.printf("interviewer> %s\n", e.Message)

	case interview.EventQuestionChanged:
		a.printf("\nQuestion %d: %s\n", e.Question.Index+1, e.Question.Text)

	case interview.EventWarning:
		a.printf("! %s\n", e.Message)

	case interview.EventWaiting:
		a.printf("… %s\n", e.Message)

	case interview.EventPhaseChanged:
		slog.Debug("phase changed", "phase", e.Phase)

	case interview.EventFeedbackReady:
		a.printFeedback(e.Feedback)
		m := a.currentMachine()
		snap := m.Snapshot()
		a.metrics.RecordSessionCompleted(context.Background(), tierOrNone(snap.ActiveProvider))
		go a.saveOutcome(m)
		a.printf("\nUse /retake to try again, /history to review past sessions, or /quit to exit.\n")

	case interview.EventSessionEnded:
		a.metrics.ActiveSessions.Add(context.Background(), -1)
		a.printf("interviewer> %s\n", e.Message)
	}
}

// ─── Rendering helpers ───────────────────────────────────────────────────────

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) reportErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, interview.ErrWrongPhase):
		a.printf("! That command does not apply right now.\n")
	case errors.Is(err, interview.ErrBadIndex):
		a.printf("! There is no question with that number.\n")
	default:
		a.printf("! %v\n", err)
	}
}

func (a *App) printStatus(s interview.Session) {
	a.printf("session %s — phase %s\n", s.ID, s.Phase)
	if s.Topic != "" {
		a.printf("  topic: %s (%s, %d questions)\n", s.Topic, s.Level, s.Count)
	}
	for i, q := range s.Questions {
		marker := " "
		if i == s.CurrentIndex {
			marker = ">"
		}
		state := "unanswered"
		switch ans, ok := s.Responses[i]; {
		case ok && ans == interview.SkippedAnswer:
			state = "skipped"
		case ok:
			state = "answered"
		}
		a.printf("  %s Q%d [%s] %s\n", marker, i+1, state, q.Text)
	}
	if s.ActiveProvider != "" {
		a.printf("  serving tier: %s\n", s.ActiveProvider)
	}
}

func (a *App) printFeedback(fb *interview.Feedback) {
	a.printf("\n─── Interview feedback ───\n")
	a.printf("Overall rating: %d/10\n\n", fb.OverallRating)
	a.printf("Strengths:\n")
	for _, s := range fb.Strengths {
		a.printf("  + %s\n", s)
	}
	a.printf("Weaknesses:\n")
	for _, w := range fb.Weaknesses {
		a.printf("  - %s\n", w)
	}
	a.printf("Suggested topics to study:\n")
	for _, t := range fb.SuggestedTopics {
		a.printf("  * %s\n", t)
	}
	if fb.Narrative != "" {
		a.printf("\n%s\n", fb.Narrative)
	}
}

func (a *App) listVoices(ctx context.Context) {
	if a.providers.TTS == nil {
		a.printf("no TTS provider configured\n")
		return
	}
	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	voices, err := a.providers.TTS.ListVoices(vctx)
	if err != nil {
		a.printf("! could not list voices: %v\n", err)
		return
	}
	current := ""
	if a.speaker != nil {
		current = a.speaker.Voice().ID
	}
	for _, v := range voices {
		marker := " "
		if v.ID == current {
			marker = "*"
		}
		a.printf("%s %s  %s\n", marker, v.ID, v.Name)
	}
}

// selectVoice switches the interviewer voice and persists the choice.
func (a *App) selectVoice(ctx context.Context, id string) {
	if a.speaker == nil {
		a.printf("no TTS provider configured\n")
		return
	}
	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	voices, err := a.providers.TTS.ListVoices(vctx)
	if err != nil {
		a.printf("! could not list voices: %v\n", err)
		return
	}
	for _, v := range voices {
		if v.ID != id {
			continue
		}
		cur := a.speaker.Voice()
		v.Pitch, v.Rate = cur.Pitch, cur.Rate
		a.speaker.SetVoice(v)
		a.printf("voice switched to %s (%s)\n", v.Name, v.ID)
		if a.prefsDB != nil {
			p, err := a.prefsDB.Load()
			if err != nil {
				slog.Warn("failed to load preferences, rewriting", "error", err)
				p = prefs.Preferences{}
			}
			p.VoiceID, p.VoiceName = v.ID, v.Name
			if err := a.prefsDB.Save(p); err != nil {
				slog.Warn("failed to persist voice preference", "error", err)
			}
		}
		return
	}
	a.printf("! no voice with id %q — use /voices to list them\n", id)
}

func (a *App) printHistory(ctx context.Context, limit int) {
	if a.store == nil {
		a.printf("history is not configured (set history.postgres_dsn)\n")
		return
	}
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	outcomes, err := a.store.RecentOutcomes(hctx, limit)
	if err != nil {
		a.printf("! could not load history: %v\n", err)
		return
	}
	if len(outcomes) == 0 {
		a.printf("no past interviews recorded yet\n")
		return
	}
	for _, o := range outcomes {
		a.printf("%s  %-20s %-12s %2d/10  (%d questions, via %s)\n",
			o.CompletedAt.Format("2006-01-02 15:04"),
			o.Topic, o.Level, o.Rating, len(o.Questions), o.Provider)
	}
}
