package server

// Command names, as they appear in the first whitespace-delimited field
// of an ASCII request line. Grounded on
// original_source/src/server/memcached/proto_ascii.h's command table.
const (
	GetCommand      = "get"
	GetsCommand     = "gets"
	SetCommand      = "set"
	AddCommand      = "add"
	ReplaceCommand  = "replace"
	CasCommand      = "cas"
	AppendCommand   = "append"
	PrependCommand  = "prepend"
	DeleteCommand   = "delete"
	TouchCommand    = "touch"
	IncrCommand     = "incr"
	DecrCommand     = "decr"
	FlushAllCommand = "flush_all"
	StatsCommand    = "stats"
	VersionCommand  = "version"
	QuitCommand     = "quit"
)

// Response lines, verbatim per the memcached ASCII protocol.
const (
	Separator             = "\r\n"
	StoredResponse        = "STORED"
	NotStoredResponse     = "NOT_STORED"
	ExistsResponse        = "EXISTS"
	NotFoundResponse      = "NOT_FOUND"
	DeletedResponse       = "DELETED"
	TouchedResponse       = "TOUCHED"
	OkResponse            = "OK"
	EndResponse           = "END"
	ValueResponse         = "VALUE"
	ErrorResponse         = "ERROR"
	ClientErrorResponse   = "CLIENT_ERROR"
	ServerErrorResponse   = "SERVER_ERROR"
	VersionPrefixResponse = "VERSION"
)

// Version is reported in response to the "version" command.
const Version = "1.0.0-cachelot-sub000"
