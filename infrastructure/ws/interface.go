package ws

// Registry maps connected users to their single live delivery channel.
// A reconnecting user evicts their previous channel (last writer wins).
type Registry interface {
	Run()
	RegisterClient(client *UserClient)
	UnregisterClient(client *UserClient)
	SendToClient(userID string, message []byte) bool
	Broadcast(message []byte)
	IsOnline(userID string) bool
	OnlineUsers() []string
	ClientCount() int
	SetOnClientRegister(callback func(client *UserClient))
	SetOnClientUnregister(callback func(client *UserClient) error)
	SetOnPresenceChange(callback func(online []string))
}
