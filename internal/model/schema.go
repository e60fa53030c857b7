package model

// All returns every model owned by the schema, in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Item{}, &Conversation{}, &Message{}, &Notification{}}
}
