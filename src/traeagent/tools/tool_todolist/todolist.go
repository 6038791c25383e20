package tool_todolist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/traeagent/toolsutil"
)

// Tool name constant
const Name = "todo_list"

const todoListPrompt = `Manage a todo list for planning and tracking the steps of the current task.
* new: replace the list with the given items
* add_items: append items, or insert them after the item with the given id
* update_item: change the content and/or status of an item
* delete_item: remove an item
* display: show the list
Statuses: todo, in_progress, done, canceled, deferred. IDs are 1-based and never reused.`

// Status is the state of a todo item.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCanceled   Status = "canceled"
	StatusDeferred   Status = "deferred"
)

var statuses = []Status{StatusTodo, StatusInProgress, StatusDone, StatusCanceled, StatusDeferred}

func (s Status) marker() string {
	switch s {
	case StatusInProgress:
		return "[~]"
	case StatusDone:
		return "[x]"
	case StatusCanceled:
		return "[-]"
	case StatusDeferred:
		return "[>]"
	default:
		return "[ ]"
	}
}

// Item is one entry of the list.
type Item struct {
	ID      string
	Content string
	Status  Status
}

// TodoListInput represents the parameters for todo_list
type TodoListInput struct {
	Command string   `json:"command" required:"true" enum:"new,add_items,update_item,delete_item,display" description:"The command to execute"`
	Items   []string `json:"items,omitempty" description:"List of todo items (for new and add_items commands)"`
	ID      string   `json:"id,omitempty" description:"Item ID for update_item, delete_item commands, or after which to insert for add_items. The ID is 1-based."`
	Content string   `json:"content,omitempty" description:"New content for the todo item (for update_item command)"`
	Status  string   `json:"status,omitempty" enum:"todo,in_progress,done,canceled,deferred" description:"New status for the todo item (for update_item command)"`
}

// List is the tool state.
type List struct {
	mu     sync.Mutex
	items  []Item
	nextID int
}

// Tool returns the todo_list tool definition backed by a fresh List.
func Tool() (agent.Tool, error) {
	l := &List{}
	return agent.NewGenericTool(Name, todoListPrompt, l.handle,
		agent.WithReset[TodoListInput](l.Reset),
		agent.WithDescriber(func(in TodoListInput) string { return "todo_list " + in.Command }),
	)
}

// Reset clears the list and restarts IDs at 1.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
	l.nextID = 0
}

// Items returns a copy of the current items.
func (l *List) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

func (l *List) handle(ctx context.Context, in TodoListInput) (string, error) {
	if err := toolsutil.CheckCancelled(ctx); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	switch in.Command {
	case "new":
		l.items = nil
		l.nextID = 0
		l.items = l.newItems(in.Items)
		return fmt.Sprintf("Created new todo list with %d items", len(l.items)), nil
	case "add_items":
		return l.add(in.Items, in.ID)
	case "update_item":
		return l.update(in.ID, in.Content, in.Status)
	case "delete_item":
		if in.ID == "" {
			return "", errors.New("ID parameter is required for delete_item")
		}
		i := l.index(in.ID)
		if i < 0 {
			return "", fmt.Errorf("Item with ID '%s' not found", in.ID)
		}
		l.items = slices.Delete(l.items, i, i+1)
		return fmt.Sprintf("Deleted item '%s'", in.ID), nil
	case "display":
		return l.display(), nil
	default:
		return "", fmt.Errorf("Unknown command: %s. Supported commands are: new, add_items, update_item, delete_item, display", in.Command)
	}
}

func (l *List) newItems(contents []string) []Item {
	out := make([]Item, 0, len(contents))
	for _, c := range contents {
		l.nextID++
		out = append(out, Item{ID: strconv.Itoa(l.nextID), Content: c, Status: StatusTodo})
	}
	return out
}

func (l *List) add(contents []string, after string) (string, error) {
	if len(contents) == 0 {
		return "", errors.New("Items parameter is required for add_items")
	}
	pos := len(l.items)
	if after != "" {
		i := l.index(after)
		if i < 0 {
			return "", fmt.Errorf("Item with ID '%s' not found", after)
		}
		pos = i + 1
	}
	l.items = slices.Insert(l.items, pos, l.newItems(contents)...)
	return fmt.Sprintf("Added %d items to todo list", len(contents)), nil
}

func (l *List) update(id, content, status string) (string, error) {
	if id == "" {
		return "", errors.New("ID parameter is required for update_item")
	}
	if content == "" && status == "" {
		return "", errors.New("At least one of 'content' or 'status' parameter is required for update_item")
	}
	if status != "" && !slices.Contains(statuses, Status(status)) {
		return "", fmt.Errorf("Invalid status: '%s'. Valid statuses are: todo, in_progress, done, canceled, deferred", status)
	}
	i := l.index(id)
	if i < 0 {
		return "", fmt.Errorf("Item with ID '%s' not found", id)
	}

	var updates []string
	if content != "" {
		l.items[i].Content = content
		updates = append(updates, "content")
	}
	if status != "" {
		l.items[i].Status = Status(status)
		updates = append(updates, "status")
	}
	return fmt.Sprintf("Updated %s for item '%s'", strings.Join(updates, " and "), id), nil
}

func (l *List) index(id string) int {
	return slices.IndexFunc(l.items, func(it Item) bool { return it.ID == id })
}

func (l *List) display() string {
	if len(l.items) == 0 {
		return "Todo list is empty"
	}
	var sb strings.Builder
	sb.WriteString("# Todo List\n\n")
	for _, it := range l.items {
		fmt.Fprintf(&sb, "* %s %s (ID: %s)\n", it.Status.marker(), it.Content, it.ID)
	}
	return sb.String()
}
