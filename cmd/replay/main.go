// Command replay runs a recorded landmark stream through one evaluator.
//
// The input holds one JSON frame per line, as accepted by the session API.
// Frame timestamps drive the plank hold timer; frames without one are spaced
// at -fps.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/config"
	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/logging"
	"github.com/ayusman/formcoach/internal/pose"
)

func main() {
	kindFlag := flag.String("exercise", "", "exercise to evaluate [pushup | squat | plank]")
	sideFlag := flag.String("side", "auto", "preferred side [auto | left | right]")
	summary := flag.Bool("summary", false, "print only the final state")
	fps := flag.Float64("fps", 30, "frame rate assumed for frames without a timestamp")
	env := flag.String("env", "development", "environment table to read thresholds from")
	configPath := flag.String("config", "", "optional TOML config with exercise thresholds")
	flag.Parse()

	logging.Setup(logging.LoggerSetupParams{LogLevel: "warn"})

	kind, err := exercise.ParseKind(*kindFlag)
	if err != nil {
		log.Fatalf("-exercise: %s", err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open input: %s", err)
		}
		defer f.Close()
		in = f
	}

	clock := &frameClock{step: time.Duration(float64(time.Second) / *fps)}
	evaluator, err := exercise.New(kind, cfg.Exercise, clock)
	if err != nil {
		log.Fatalf("create evaluator: %s", err)
	}

	res, err := replay(in, os.Stdout, evaluator, clock, pose.ParseSide(*sideFlag), *summary)
	if err != nil {
		log.Fatalf("replay: %s", err)
	}
	log.Infof("replayed %d frames, %d rejected", res.frames, res.rejected)
}

// frameClock reports the timestamp of the frame being evaluated.
type frameClock struct {
	step time.Duration
	now  time.Time
	seen bool
}

func (c *frameClock) Now() time.Time { return c.now }

// advance moves the clock to the frame's timestamp, or one step forward when
// the frame has none.
func (c *frameClock) advance(f pose.Frame) {
	switch {
	case f.Timestamp > 0:
		c.now = time.UnixMilli(f.Timestamp)
	case c.seen:
		c.now = c.now.Add(c.step)
	default:
		c.now = time.Unix(0, 0)
	}
	c.seen = true
}

type result struct {
	frames   int
	rejected int
}

type outputLine struct {
	Line     int            `json:"line"`
	Accepted bool           `json:"accepted"`
	State    exercise.State `json:"state"`
}

func replay(in io.Reader, out io.Writer, e exercise.Evaluator, clock *frameClock, side pose.Side, summary bool) (result, error) {
	var res result
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var frame pose.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		clock.advance(frame)
		accepted := e.Update(frame, side)
		res.frames++
		if !accepted {
			res.rejected++
		}

		if !summary {
			if err := enc.Encode(outputLine{Line: line, Accepted: accepted, State: e.State()}); err != nil {
				return res, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}

	if summary {
		if err := enc.Encode(e.State()); err != nil {
			return res, err
		}
	}
	return res, nil
}
