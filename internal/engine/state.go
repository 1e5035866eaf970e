package engine

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/ghostview/internal/webview"
)

const stateVersion = 1

var errBadState = errors.New("invalid navigation state")

type savedState struct {
	Version int                   `json:"v"`
	Items   []webview.HistoryItem `json:"items"`
	Current int                   `json:"current"`
}

func encodeState(h webview.History) ([]byte, error) {
	return pack(savedState{Version: stateVersion, Items: h.Items, Current: h.Current})
}

func decodeState(blob []byte) (*webview.History, error) {
	var s savedState
	if err := unpack(blob, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadState, err)
	}
	if s.Version != stateVersion {
		return nil, fmt.Errorf("%w: version %d", errBadState, s.Version)
	}
	if len(s.Items) == 0 || s.Current < 0 || s.Current >= len(s.Items) {
		return nil, fmt.Errorf("%w: index %d of %d", errBadState, s.Current, len(s.Items))
	}
	return &webview.History{Items: s.Items, Current: s.Current}, nil
}

func cloneHistory(h webview.History) *webview.History {
	return &webview.History{
		Items:   append([]webview.HistoryItem(nil), h.Items...),
		Current: h.Current,
	}
}
