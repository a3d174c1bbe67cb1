package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"edu-arena/internal/models"
	"edu-arena/internal/room"
	"edu-arena/internal/services"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotJoined      = errors.New("join the room first")
	ErrJoinPending    = errors.New("join not confirmed by the host yet")
	ErrUsage          = errors.New("bad arguments")
)

// Session is one participant driven from the console.
type Session struct {
	Room     *room.Room
	PlayerID string
}

// Console turns typed lines into room operations. With several sessions the
// "tab" command switches which one receives the next command.
type Console struct {
	sessions []*Session
	active   int
	out      io.Writer
}

func New(out io.Writer, sessions ...*Session) *Console {
	return &Console{sessions: sessions, out: out}
}

func (c *Console) Active() *Session {
	return c.sessions[c.active]
}

// Run reads commands from in until it is exhausted, "quit" is typed or ctx
// is cancelled. Command errors are printed and do not stop the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "quit" {
				return nil
			}
			if err := c.Execute(line); err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

func (c *Console) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	s := c.Active()

	switch cmd {
	case "help":
		fmt.Fprintln(c.out, "commands: join NAME TEAM ROLE CLASS | move X Y | attack | answer INDEX|true|false |")
		fmt.Fprintln(c.out, "          upgrade STAT | start | phase QUIZ|BATTLE | addquiz Q|A|B|C|D|N | quiz | state | tab N | quit")
		return nil

	case "tab":
		if len(args) != 1 {
			return ErrUsage
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(c.sessions) {
			return fmt.Errorf("tab %s: %w", args[0], ErrUsage)
		}
		c.active = n - 1
		fmt.Fprintf(c.out, "tab %d (%s)\n", n, c.Active().PlayerID)
		return nil

	case "join":
		if len(args) != 4 {
			return ErrUsage
		}
		id, err := s.Room.Join(models.JoinRequest{
			RoomCode:  s.Room.Code(),
			Name:      args[0],
			TeamID:    args[1],
			Role:      models.Role(strings.ToUpper(args[2])),
			ClassType: models.ClassType(strings.ToUpper(args[3])),
		})
		if err != nil {
			return err
		}
		s.PlayerID = id
		if s.Room.Mode() == room.ModeStudent {
			fmt.Fprintf(c.out, "join sent as %s, waiting for host\n", id)
		}
		return nil

	case "start":
		return s.Room.StartGame()

	case "phase":
		if len(args) != 1 {
			return ErrUsage
		}
		return s.Room.SetPhase(models.Phase(strings.ToUpper(args[0])))

	case "addquiz":
		q, err := parseQuiz(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
		if err != nil {
			return err
		}
		return s.Room.AddQuiz(q)

	case "quiz":
		q, ok := services.CurrentQuiz(s.Room.State())
		if !ok {
			fmt.Fprintln(c.out, "no quiz")
			return nil
		}
		fmt.Fprintln(c.out, q.Question)
		for i, opt := range q.Options {
			fmt.Fprintf(c.out, "  %d) %s\n", i, opt)
		}
		return nil

	case "state":
		fmt.Fprint(c.out, Summary(s.Room.State()))
		return nil
	}

	if s.PlayerID == "" {
		return ErrNotJoined
	}
	intent, err := c.intent(s, cmd, args)
	if err != nil {
		return err
	}
	if _, ok := s.Room.State().Players[s.PlayerID]; !ok {
		return ErrJoinPending
	}
	return s.Room.Dispatch(intent)
}

// inUnit is false for NaN as well as anything outside [-1, 1].
func inUnit(v float64) bool {
	return v >= -1 && v <= 1
}

func (c *Console) intent(s *Session, cmd string, args []string) (models.Intent, error) {
	switch cmd {
	case "move":
		if len(args) != 2 {
			return models.Intent{}, ErrUsage
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		y, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil || !inUnit(x) || !inUnit(y) {
			return models.Intent{}, fmt.Errorf("move wants two numbers in [-1, 1]: %w", ErrUsage)
		}
		return models.Move(s.PlayerID, x, y), nil

	case "attack":
		return models.Attack(s.PlayerID), nil

	case "answer":
		if len(args) != 1 {
			return models.Intent{}, ErrUsage
		}
		if correct, err := strconv.ParseBool(args[0]); err == nil {
			return models.AnswerQuiz(s.PlayerID, correct), nil
		}
		choice, err := strconv.Atoi(args[0])
		if err != nil {
			return models.Intent{}, ErrUsage
		}
		q, ok := services.CurrentQuiz(s.Room.State())
		if !ok {
			return models.Intent{}, services.ErrInvalidQuiz
		}
		return models.AnswerQuiz(s.PlayerID, choice == q.CorrectIndex), nil

	case "upgrade":
		if len(args) != 1 {
			return models.Intent{}, ErrUsage
		}
		return models.UpgradeStat(s.PlayerID, strings.ToLower(args[0])), nil
	}
	return models.Intent{}, fmt.Errorf("%s: %w", cmd, ErrUnknownCommand)
}

// parseQuiz reads "question|a|b|c|d|correctIndex".
func parseQuiz(raw string) (models.Quiz, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 6 {
		return models.Quiz{}, fmt.Errorf("addquiz wants question|a|b|c|d|index: %w", ErrUsage)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err != nil {
		return models.Quiz{}, fmt.Errorf("addquiz index: %w", ErrUsage)
	}
	q := models.Quiz{Question: strings.TrimSpace(parts[0]), CorrectIndex: idx}
	for _, opt := range parts[1:5] {
		q.Options = append(q.Options, strings.TrimSpace(opt))
	}
	return q, nil
}

// Summary renders the state as a few human readable lines.
func Summary(s models.GameState) string {
	var b strings.Builder
	status := "waiting"
	if s.IsStarted {
		status = "started"
	}
	fmt.Fprintf(&b, "room %s  %s  phase %s  quizzes %d\n", s.RoomCode, status, s.Phase, len(s.Quizzes))

	ids := make([]string, 0, len(s.Teams))
	for id := range s.Teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := s.Teams[id]
		dead := ""
		if t.IsDead {
			dead = "  DEAD"
		}
		fmt.Fprintf(&b, "  team %s %-7s hp %d/%d  pts %d  atk %d def %d rng %d  at (%.0f, %.0f)%s\n",
			t.ID, t.ClassType, t.HP, t.MaxHP, t.Points, t.Stats.Attack, t.Stats.Defense, t.Stats.Range,
			t.Position.X, t.Position.Y, dead)
	}

	names := make([]string, 0, len(s.Players))
	for id := range s.Players {
		names = append(names, id)
	}
	sort.Strings(names)
	for _, id := range names {
		p := s.Players[id]
		fmt.Fprintf(&b, "  %s  team %s  %s/%s  pts %d\n", p.Name, p.TeamID, p.Role, p.ClassType, p.Points)
	}
	return b.String()
}
