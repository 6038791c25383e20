package tool_todolist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodoListSequence(t *testing.T) {
	tool, err := Tool()
	require.NoError(t, err)
	ctx := context.Background()

	steps := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr string
	}{
		{name: "empty display", args: map[string]any{"command": "display"}, want: "Todo list is empty"},
		{name: "new", args: map[string]any{"command": "new", "items": []any{"Item 1", "Item 2"}}, want: "Created new todo list with 2 items"},
		{name: "add after", args: map[string]any{"command": "add_items", "items": []any{"Between"}, "id": "1"}, want: "Added 1 items to todo list"},
		{name: "add at end", args: map[string]any{"command": "add_items", "items": []any{"Last"}}, want: "Added 1 items to todo list"},
		{name: "add after missing", args: map[string]any{"command": "add_items", "items": []any{"x"}, "id": "99"}, wantErr: "Item with ID '99' not found"},
		{name: "update both", args: map[string]any{"command": "update_item", "id": "2", "content": "Second", "status": "in_progress"}, want: "Updated content and status for item '2'"},
		{name: "update status", args: map[string]any{"command": "update_item", "id": "3", "status": "done"}, want: "Updated status for item '3'"},
		{name: "update nothing", args: map[string]any{"command": "update_item", "id": "3"}, wantErr: "At least one of 'content' or 'status'"},
		{name: "bad status", args: map[string]any{"command": "update_item", "id": "3", "status": "blocked"}, wantErr: "Invalid status: 'blocked'"},
		{name: "delete", args: map[string]any{"command": "delete_item", "id": "4"}, want: "Deleted item '4'"},
		{name: "delete missing", args: map[string]any{"command": "delete_item", "id": "4"}, wantErr: "Item with ID '4' not found"},
		{
			name: "display",
			args: map[string]any{"command": "display"},
			want: "# Todo List\n\n* [ ] Item 1 (ID: 1)\n* [x] Between (ID: 3)\n* [~] Second (ID: 2)\n",
		},
		{name: "unknown", args: map[string]any{"command": "clear"}, wantErr: "Unknown command: clear."},
	}
	for _, st := range steps {
		got, err := tool.Execute(ctx, st.args)
		if st.wantErr != "" {
			require.Error(t, err, st.name)
			assert.Contains(t, err.Error(), st.wantErr, st.name)
			continue
		}
		require.NoError(t, err, st.name)
		assert.Equal(t, st.want, got, st.name)
	}
}

func TestTodoListResetRestartsIDs(t *testing.T) {
	tool, err := Tool()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tool.Execute(ctx, map[string]any{"command": "new", "items": []any{"a", "b"}})
	require.NoError(t, err)
	tool.Reset()

	got, err := tool.Execute(ctx, map[string]any{"command": "display"})
	require.NoError(t, err)
	assert.Equal(t, "Todo list is empty", got)

	_, err = tool.Execute(ctx, map[string]any{"command": "add_items", "items": []any{"c"}})
	require.NoError(t, err)
	got, err = tool.Execute(ctx, map[string]any{"command": "display"})
	require.NoError(t, err)
	assert.Equal(t, "# Todo List\n\n* [ ] c (ID: 1)\n", got)
}

func TestListItems(t *testing.T) {
	l := &List{}
	_, err := l.handle(context.Background(), TodoListInput{Command: "new", Items: []string{"a"}})
	require.NoError(t, err)
	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, Item{ID: "1", Content: "a", Status: StatusTodo}, items[0])
}
