package services

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xcyber/portal/internal/models"
)

// DraftWriter checks and persists one answer. ResponseService satisfies it.
type DraftWriter interface {
	CheckAnswer(userID string, in SaveAnswer) error
	SaveResponse(userID string, in SaveAnswer) (*models.Response, error)
}

// ErrAutosaverClosed is returned by Stage after Close.
var ErrAutosaverClosed = errors.New("autosaver closed")

type draftKey struct {
	userID    string
	sectionID string
}

type draft struct {
	providerID string
	answers    map[string]models.Answer
	order      []string
	timer      *time.Timer
	gen        uint64
}

// Autosaver debounces keystroke-level edits per (user, section). Each Stage
// cancels the pending write for that key and schedules a new one after delay.
type Autosaver struct {
	mu      sync.Mutex
	idle    *sync.Cond
	writer  DraftWriter
	delay   time.Duration
	pending map[draftKey]*draft
	// drafts a timer has taken and is still writing
	inflight map[*draft]draftKey
	closed   bool
}

func NewAutosaver(writer DraftWriter, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = time.Second
	}
	a := &Autosaver{
		writer:   writer,
		delay:    delay,
		pending:  map[draftKey]*draft{},
		inflight: map[*draft]draftKey{},
	}
	a.idle = sync.NewCond(&a.mu)
	return a
}

// Stage merges answers (question id -> answer) into the pending draft and re-arms its timer.
// Answers are checked up front; if any is rejected nothing is staged.
func (a *Autosaver) Stage(userID, providerID, sectionID string, answers map[string]models.Answer) error {
	if userID == "" || providerID == "" || sectionID == "" {
		return NewInvalidError("user, provider and section required")
	}
	qids := make([]string, 0, len(answers))
	for qid := range answers {
		qids = append(qids, qid)
	}
	sort.Strings(qids)
	for _, qid := range qids {
		in := SaveAnswer{ProviderID: providerID, SectionID: sectionID, QuestionID: qid, Answer: answers[qid]}
		if err := a.writer.CheckAnswer(userID, in); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAutosaverClosed
	}
	key := draftKey{userID: userID, sectionID: sectionID}
	d := a.pending[key]
	if d == nil || d.providerID != providerID {
		if d != nil {
			d.timer.Stop()
		}
		d = &draft{providerID: providerID, answers: map[string]models.Answer{}}
		a.pending[key] = d
	} else {
		d.timer.Stop()
	}
	for _, qid := range qids {
		if _, seen := d.answers[qid]; !seen {
			d.order = append(d.order, qid)
		}
		d.answers[qid] = answers[qid]
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(a.delay, func() { a.fire(key, d, gen) })
	return nil
}

// fire writes d unless it was flushed or re-armed since gen was scheduled.
func (a *Autosaver) fire(key draftKey, d *draft, gen uint64) {
	a.mu.Lock()
	if a.pending[key] != d || d.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	a.inflight[d] = key
	a.mu.Unlock()
	err := a.write(key, d)
	a.mu.Lock()
	delete(a.inflight, d)
	a.idle.Broadcast()
	a.mu.Unlock()
	if err != nil {
		log.Printf("autosave: user %s section %s: %v", key.userID, key.sectionID, err)
	}
}

// take waits until no matching draft is mid-write, then removes and returns
// the matching pending drafts.
func (a *Autosaver) take(match func(draftKey, *draft) bool) map[draftKey]*draft {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.writing(match) {
		a.idle.Wait()
	}
	out := map[draftKey]*draft{}
	for k, d := range a.pending {
		if match(k, d) {
			d.timer.Stop()
			delete(a.pending, k)
			out[k] = d
		}
	}
	return out
}

func (a *Autosaver) writing(match func(draftKey, *draft) bool) bool {
	for d, k := range a.inflight {
		if match(k, d) {
			return true
		}
	}
	return false
}

func (a *Autosaver) write(key draftKey, d *draft) error {
	var errs []error
	for _, qid := range d.order {
		_, err := a.writer.SaveResponse(key.userID, SaveAnswer{
			ProviderID: d.providerID,
			SectionID:  key.sectionID,
			QuestionID: qid,
			Answer:     d.answers[qid],
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Autosaver) writeAll(drafts map[draftKey]*draft) error {
	var errs []error
	for k, d := range drafts {
		if err := a.write(k, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush writes the pending draft of one section now.
func (a *Autosaver) Flush(userID, sectionID string) error {
	key := draftKey{userID: userID, sectionID: sectionID}
	return a.writeAll(a.take(func(k draftKey, _ *draft) bool { return k == key }))
}

// FlushProvider writes every pending draft of the user for a provider.
func (a *Autosaver) FlushProvider(userID, providerID string) error {
	return a.writeAll(a.take(func(k draftKey, d *draft) bool {
		return k.userID == userID && d.providerID == providerID
	}))
}

// Pending reports how many drafts are waiting to be written.
func (a *Autosaver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close flushes everything, waits for timer writes already running and
// rejects further stages.
func (a *Autosaver) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.writeAll(a.take(func(draftKey, *draft) bool { return true }))
}
