package simulation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"intersection/shared"

	log "github.com/sirupsen/logrus"
)

var kindLabels = map[shared.Kind]string{
	shared.KindCommuter: "C",
	shared.KindTransit:  "T",
	shared.KindSportA:   "A",
	shared.KindSportB:   "B",
	shared.KindRider:    "R",
}

// cellWidth is the padded width of one rendered cell
const cellWidth = 7

// WriteFrame renders a frame as a text grid with the north edge (row 0) on top, followed by
// the signal state and one line per agent
func WriteFrame(w io.Writer, f shared.Frame) error {
	if _, err := fmt.Fprintf(w, "Tick %d (run %s) - Current Grid State & Agent States:\n", f.Tick, f.RunID); err != nil {
		return err
	}

	cells := make([][]string, f.Height)
	for y := range cells {
		cells[y] = make([]string, f.Width)
	}
	for _, a := range f.Agents {
		if a.Position.X < 0 || a.Position.X >= f.Width || a.Position.Y < 0 || a.Position.Y >= f.Height {
			continue
		}
		label := fmt.Sprintf("%s%d", kindLabels[a.Kind], a.ID)
		if cur := cells[a.Position.Y][a.Position.X]; cur != "" {
			label = cur + "+" + label
		}
		cells[a.Position.Y][a.Position.X] = label
	}
	center := f.Signal.Position

	for y := 0; y < f.Height; y++ {
		row := make([]string, f.Width)
		for x := 0; x < f.Width; x++ {
			label := cells[y][x]
			switch {
			case label != "":
			case x == center.X && y == center.Y:
				label = "*"
			default:
				label = "."
			}
			row[x] = fmt.Sprintf("%-*s", cellWidth, label)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(row, " "), " ")); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nSignal at (%d, %d): %s, serving %s, queue %d, saturated %t\n",
		center.X, center.Y, f.Signal.Color, f.Signal.Cycle, f.Signal.Queue, f.Signal.Saturated); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "\nAgent States:"); err != nil {
		return err
	}
	for _, a := range f.Agents {
		extra := ""
		switch a.Kind {
		case shared.KindCommuter:
			extra = fmt.Sprintf(" -> %s", a.Destination)
		case shared.KindTransit:
			extra = fmt.Sprintf(" passengers=%d", a.Passengers)
		}
		if _, err := fmt.Fprintf(w, "Agent %d %s at (%d, %d): %s/%s score=%d%s\n",
			a.ID, a.Kind, a.Position.X, a.Position.Y, a.State, a.Token, a.Score, extra); err != nil {
			return err
		}
	}
	return nil
}

// FrameFile keeps the latest frame in a file, overwriting it on every print
type FrameFile struct {
	file *os.File
}

// OpenFrameFile creates or truncates the frame file at path
func OpenFrameFile(path string) (*FrameFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening frame file %s: %w", path, err)
	}
	log.Printf("Grid output will be written to %s", path)
	return &FrameFile{file: file}, nil
}

// PrintState replaces the file content with the given frame
func (ff *FrameFile) PrintState(f shared.Frame) {
	if _, err := ff.file.Seek(0, 0); err != nil {
		log.Printf("Error seeking in output file: %v", err)
		return
	}
	if err := ff.file.Truncate(0); err != nil {
		log.Printf("Error truncating output file: %v", err)
		return
	}
	if err := WriteFrame(ff.file, f); err != nil {
		log.Printf("Error writing frame: %v", err)
		return
	}
	if err := ff.file.Sync(); err != nil {
		log.Printf("Error syncing output file: %v", err)
	}
}

// Close closes the underlying file
func (ff *FrameFile) Close() error {
	log.Printf("Closing output file: %s", ff.file.Name())
	return ff.file.Close()
}
