package internal

import (
	"log"
	"strings"
	"time"

	mt "github.com/etesami/template-matching-demo/pkg/metric"
	"github.com/etesami/template-matching-demo/pkg/rpc"
	"github.com/etesami/template-matching-demo/pkg/utils"
)

// ObserveRemote returns a call observer that records the payload sizes and
// the network round trip of every call to the matcher service. Time the
// matcher spent serving, as stamped in its response header, is not counted.
func ObserveRemote(dstSvcName string, m *mt.Metric) rpc.CallObserver {
	return func(cs rpc.CallStats) {
		name := cs.Method[strings.LastIndex(cs.Method, "/")+1:]
		if cs.Err != nil {
			log.Printf("Call [%s] to [%s] failed after [%s]: %v\n", name, dstSvcName, cs.Received.Sub(cs.Sent), cs.Err)
			return
		}
		m.AddSentDataBytes(dstSvcName, float64(cs.SentBytes))
		m.AddReceivedDataBytes(dstSvcName, float64(cs.ReceivedBytes))

		remoteRec, remoteSent := cs.RemoteReceived, cs.RemoteSent
		if remoteRec.IsZero() || remoteSent.IsZero() {
			remoteRec, remoteSent = cs.Sent, cs.Sent
		}
		rtt, err := utils.CalculateRtt(cs.Sent, remoteRec, remoteSent, cs.Received)
		if err != nil {
			log.Printf("Error calculating RTT for [%s]: %v\n", name, err)
			return
		}
		m.AddRttTime(dstSvcName, rtt)
	}
}

// Processing time (ms) of an HTTP handler, including any remote calls
func addProcessingTime(l string, m *mt.Metric, stTime time.Time) {
	elapsed := float64(time.Since(stTime).Microseconds()) / 1000.0
	m.AddProcessingTime(l, elapsed)
}
