package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Database        Category = "Database"
	MongoDB         Category = "MongoDB"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	WebSocket       Category = "WebSocket"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Database
	Migration SubCategory = "Migration"
	Query     SubCategory = "Query"
	Seed      SubCategory = "Seed"

	// Domain
	Ingestion    SubCategory = "Ingestion"
	Management   SubCategory = "Management"
	Session      SubCategory = "Session"
	Publish      SubCategory = "Publish"
	Subscription SubCategory = "Subscription"
)

const (
	AppName        ExtraKey = "AppName"
	LoggerName     ExtraKey = "Logger"
	CategoryKey    ExtraKey = "Category"
	SubCategoryKey ExtraKey = "SubCategory"
	ClientIp       ExtraKey = "ClientIp"
	HostIp         ExtraKey = "HostIp"
	Method         ExtraKey = "Method"
	StatusCode     ExtraKey = "StatusCode"
	BodySize       ExtraKey = "BodySize"
	Path           ExtraKey = "Path"
	Latency        ExtraKey = "Latency"
	RequestID      ExtraKey = "RequestId"
	RequestBody    ExtraKey = "RequestBody"
	ResponseBody   ExtraKey = "ResponseBody"
	ErrorMessage   ExtraKey = "ErrorMessage"
	SQL            ExtraKey = "SQL"
	RowsAffected   ExtraKey = "RowsAffected"
	ApplicationID  ExtraKey = "ApplicationId"
	UserID         ExtraKey = "UserId"
	EventName      ExtraKey = "EventName"
	Outcome        ExtraKey = "Outcome"
)
