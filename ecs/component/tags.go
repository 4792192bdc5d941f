package component

type AgentTag struct{}

var AgentTagComponent = NewComponent[AgentTag]()

type HostileTag struct{}

var HostileTagComponent = NewComponent[HostileTag]()

type FriendlyTag struct{}

var FriendlyTagComponent = NewComponent[FriendlyTag]()
