package bulk

import "fmt"

// Operation is a Bulk API v2 job operation. The set is closed; decode
// of an unknown value is an explicit failure, never a silent default.
type Operation string

const (
	OperationInsert     Operation = "insert"
	OperationUpdate     Operation = "update"
	OperationUpsert     Operation = "upsert"
	OperationDelete     Operation = "delete"
	OperationHardDelete Operation = "hardDelete"
	OperationQuery      Operation = "query"
)

var operations = map[Operation]bool{
	OperationInsert:     true,
	OperationUpdate:     true,
	OperationUpsert:     true,
	OperationDelete:     true,
	OperationHardDelete: true,
	OperationQuery:      true,
}

func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !operations[op] {
		return "", fmt.Errorf("unknown bulk operation %q", s)
	}

	return op, nil
}

func (o Operation) String() string { return string(o) }

// RequiresID reports whether every uploaded record must carry an Id.
func (o Operation) RequiresID() bool {
	return o == OperationUpdate || o == OperationDelete || o == OperationHardDelete
}

func (o Operation) RequiresExternalID() bool { return o == OperationUpsert }

func (o Operation) IsQuery() bool { return o == OperationQuery }
