package torrents

import (
	"time"

	atorrent "github.com/anacrolix/torrent"
	"github.com/pkg/errors"
)

type eventType int

const (
	eventReady eventType = iota
	eventFileDone
	eventFailed
	eventClosed
)

// event is one lifecycle notification for a torrent. path is set for
// eventFileDone (the engine path of the completed file); err for eventFailed.
type event struct {
	typ  eventType
	path string
	err  error
}

// eventer watches one engine torrent and turns piece state changes into
// ordered lifecycle events: ready once metadata arrives, one fileDone per
// file, failed if metadata misses its deadline, closed when the torrent is
// dropped. Events are delivered on a single channel so consumers observe
// ready strictly before any fileDone.
type eventer struct {
	t                *atorrent.Torrent
	metadataDeadline time.Duration
	events           chan event
}

func newEventer(t *atorrent.Torrent, metadataDeadline time.Duration) *eventer {
	e := &eventer{
		t:                t,
		metadataDeadline: metadataDeadline,
		events:           make(chan event),
	}
	go e.run()
	return e
}

func (e *eventer) run() {
	defer close(e.events)

	var deadline <-chan time.Time
	if e.metadataDeadline > 0 {
		deadline = time.After(e.metadataDeadline)
	}
	select {
	case <-e.t.GotInfo():
	case <-deadline:
		e.events <- event{typ: eventFailed, err: errors.Errorf("metadata not received within %s", e.metadataDeadline)}
		// The engine keeps looking for metadata; if it shows up late the
		// torrent resumes its normal lifecycle.
		select {
		case <-e.t.GotInfo():
		case <-e.t.Closed():
			e.events <- event{typ: eventClosed}
			return
		}
	case <-e.t.Closed():
		e.events <- event{typ: eventClosed}
		return
	}

	// Subscribe before scanning current piece state so completions that land
	// during the scan are not lost.
	sub := e.t.SubscribePieceStateChanges()
	defer sub.Close()

	e.events <- event{typ: eventReady}

	// For each file, the set of its incomplete pieces; for each piece, the
	// set of files it carries bytes for. A file is done when its incomplete
	// piece set drains.
	incompleteFilePieces := make(map[string]map[int]struct{})
	incompletePieceFiles := make(map[int]map[string]struct{})

	for _, f := range e.t.Files() {
		incompleteFilePieces[f.Path()] = make(map[int]struct{})
		for _, i := range pieceIndices(f) {
			if e.t.PieceState(i).Complete {
				continue
			}
			incompleteFilePieces[f.Path()][i] = struct{}{}
			if incompletePieceFiles[i] == nil {
				incompletePieceFiles[i] = make(map[string]struct{})
			}
			incompletePieceFiles[i][f.Path()] = struct{}{}
		}
	}

	// Files complete at subscription time (re-added torrents, zero-length
	// files) are reported immediately.
	for _, f := range e.t.Files() {
		if len(incompleteFilePieces[f.Path()]) == 0 {
			delete(incompleteFilePieces, f.Path())
			e.events <- event{typ: eventFileDone, path: f.Path()}
		}
	}

	for len(incompleteFilePieces) > 0 {
		psc, ok := <-sub.Values
		if !ok {
			// Subscription closes when the torrent is dropped.
			e.events <- event{typ: eventClosed}
			return
		}
		if !psc.Complete {
			continue
		}
		for path := range incompletePieceFiles[psc.Index] {
			delete(incompleteFilePieces[path], psc.Index)
			if len(incompleteFilePieces[path]) == 0 {
				delete(incompleteFilePieces, path)
				e.events <- event{typ: eventFileDone, path: path}
			}
		}
		delete(incompletePieceFiles, psc.Index)
	}

	<-e.t.Closed()
	e.events <- event{typ: eventClosed}
}

// pieceIndices returns the indices of the pieces that carry bytes of the
// given file.
func pieceIndices(f *atorrent.File) (pieces []int) {
	if f.Length() == 0 {
		return nil
	}
	t := f.Torrent()
	fileBegin := f.Offset()
	fileEnd := fileBegin + f.Length() - 1
	for i := 0; i < t.NumPieces(); i++ {
		info := t.Piece(i).Info()
		if info.Length() == 0 {
			continue
		}
		pieceBegin := info.Offset()
		pieceEnd := pieceBegin + info.Length() - 1
		if pieceEnd >= fileBegin && fileEnd >= pieceBegin {
			pieces = append(pieces, i)
		}
	}
	return pieces
}
