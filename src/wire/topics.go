package wire

// ProtocolVersion is advertised through the libp2p identify protocol. Peers
// running a different protocol version never end up in the same mesh.
const ProtocolVersion = "/taskmesh/1.0"

// Topic names of the pub-sub channels a node participates in. Request and
// response traffic travels on separate topics so that workers can subscribe
// to requests without receiving every other worker's responses.
const (
	TopicTaskRequest  = "taskmesh.task.request"
	TopicTaskResponse = "taskmesh.task.response"

	TopicProbeRequest  = "taskmesh.probe.request"
	TopicProbeResponse = "taskmesh.probe.response"

	TopicHeartbeatRequest = "taskmesh.heartbeat.request"
	TopicHeartbeatAck     = "taskmesh.heartbeat.ack"
)

// ResponseTopic maps a request topic to the topic its responses travel on.
// It returns an empty string for topics that carry no responses.
func ResponseTopic(topic string) string {
	switch topic {
	case TopicTaskRequest:
		return TopicTaskResponse
	case TopicProbeRequest:
		return TopicProbeResponse
	case TopicHeartbeatRequest:
		return TopicHeartbeatAck
	}
	return ""
}
