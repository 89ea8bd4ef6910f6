package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Mongo           Category = "Mongo"
	RabbitMQ        Category = "RabbitMQ"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
	Lab             Category = "Lab"
)

const (
	// General
	Startup         SubCategory = "Startup"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"
	Auth            SubCategory = "Auth"

	// RabbitMQ
	Publish SubCategory = "Publish"
	Consume SubCategory = "Consume"

	// Lab
	Signaling  SubCategory = "Signaling"
	PeerAudio  SubCategory = "PeerAudio"
	Presence   SubCategory = "Presence"
	TextSync   SubCategory = "TextSync"
	Moderation SubCategory = "Moderation"
	LiveQuery  SubCategory = "LiveQuery"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	HostIp       ExtraKey = "HostIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	RequestBody  ExtraKey = "RequestBody"
	ResponseBody ExtraKey = "ResponseBody"
	ErrorMessage ExtraKey = "ErrorMessage"
	RoomID       ExtraKey = "RoomID"
	RemotePeer   ExtraKey = "RemotePeer"
	RoutingKey   ExtraKey = "RoutingKey"
)
