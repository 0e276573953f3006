package protocol

import "reflect"

// GetWorkers requests a snapshot of every supervised task.
type GetWorkers struct{}

// StopServer requests that the coordinator terminate every worker and
// shut itself down.
type StopServer struct{}

// StopTasks requests that the coordinator kill only the workers whose
// service name appears in Names.
type StopTasks struct {
	Names []string
}

// WorkerInfo is the wire shape of one supervised task in a Workers
// response: just enough to report status, independent of the
// coordinator's internal worker representation.
type WorkerInfo struct {
	Name    string
	Command string
}

// Workers is the response to GetWorkers: a snapshot of every worker's
// (name, command), in the coordinator's insertion order.
type Workers struct {
	Workers []WorkerInfo
}

const (
	tagGetWorkers uint8 = 1
	tagStopServer uint8 = 2
	tagStopTasks  uint8 = 3
	tagWorkers    uint8 = 1
)

// RequestTags decodes/encodes the request variants a client sends to
// the coordinator.
var RequestTags = NewTagMap(map[uint8]reflect.Type{
	tagGetWorkers: reflect.TypeOf(GetWorkers{}),
	tagStopServer: reflect.TypeOf(StopServer{}),
	tagStopTasks:  reflect.TypeOf(StopTasks{}),
})

// ResponseTags decodes/encodes the response variants the coordinator
// sends back to a client.
var ResponseTags = NewTagMap(map[uint8]reflect.Type{
	tagWorkers: reflect.TypeOf(Workers{}),
})
