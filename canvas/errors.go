package canvas

import "errors"

// Sentinel errors returned by the model and document codec. Callers match
// them with errors.Is; messages are wrapped with the offending ids.
var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrEdgeNotFound    = errors.New("edge not found")
	ErrSelfLoop        = errors.New("edge source equals target")
	ErrDuplicateEdge   = errors.New("identical edge already exists")
	ErrDuplicateNodeID = errors.New("duplicate node id")
	ErrUnknownKind     = errors.New("unknown node kind")
	ErrInvalidNodeData = errors.New("invalid node data")
	ErrInvalidPort     = errors.New("invalid port")
	ErrInvalidEdge     = errors.New("invalid edge")
	ErrInvalidDocument = errors.New("invalid document")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidCommand  = errors.New("invalid command")
)
