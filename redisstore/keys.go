package redisstore

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "spacetodo:"

type keys struct {
	prefix string
}

func (k keys) space(id string) string      { return k.prefix + "space:" + id }
func (k keys) spaces() string              { return k.prefix + "spaces" }
func (k keys) slug(slug string) string     { return k.prefix + "slug:" + slug }
func (k keys) spaceLists(id string) string { return k.prefix + "space:" + id + ":lists" }
func (k keys) spaceTasks(id string) string { return k.prefix + "space:" + id + ":tasks" }
func (k keys) list(id string) string       { return k.prefix + "list:" + id }
func (k keys) listTodos(id string) string  { return k.prefix + "list:" + id + ":todos" }
func (k keys) user(id string) string       { return k.prefix + "user:" + id }
func (k keys) users() string               { return k.prefix + "users" }
func (k keys) task(id string) string       { return k.prefix + "task:" + id }
func (k keys) tasks() string               { return k.prefix + "tasks" }
func (k keys) taskRefs(id string) string   { return k.prefix + "task:" + id + ":todos" }
func (k keys) todo(id string) string       { return k.prefix + "todo:" + id }
func (k keys) todos() string               { return k.prefix + "todos" }
func (k keys) changes() string             { return k.prefix + "changes" }

// title indexes a task by its collation key within a space.
func (k keys) title(spaceID, key string) string {
	return k.prefix + "space:" + spaceID + ":title:" + key
}
