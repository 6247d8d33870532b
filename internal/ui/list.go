package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/plmerge/internal/models"
)

var _ list.Item = sourceItem{}

type sourceState int

const (
	sourceQueued sourceState = iota
	sourceFetching
	sourceDone
	sourceFailed
)

// sourceItem wraps [models.SourceDescriptor] to implement [list.Item].
type sourceItem struct {
	source models.SourceDescriptor
	state  sourceState
	err    error
}

func (i sourceItem) FilterValue() string { return i.source.URL }
func (i sourceItem) Title() string {
	return fmt.Sprintf("%s #%d", styles.status(i.state), i.source.Index)
}
func (i sourceItem) Description() string {
	if i.err != nil {
		return fmt.Sprintf("%s • %v", i.source.URL, i.err)
	}
	return i.source.URL
}

func sourceItems(sources []models.SourceDescriptor, state sourceState) []list.Item {
	items := make([]list.Item, len(sources))
	for i, src := range sources {
		items[i] = sourceItem{source: src, state: state}
	}
	return items
}
