package utils

import (
	"context"
	"fmt"
	"image"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	api "github.com/etesami/template-matching-demo/api"
	"github.com/etesami/template-matching-demo/pkg/rpc"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// CalculateRtt returns the round-trip time in milliseconds excluding the
// time the remote side spent between receiving the message and sending the
// ack. All timestamps are in time.Time format.
func CalculateRtt(msgSentTime, msgRecTime, ackSentTime, ackRecTime time.Time) (float64, error) {
	if ackRecTime.Before(msgSentTime) {
		return -1, fmt.Errorf("ack received before message was sent")
	}
	total := ackRecTime.Sub(msgSentTime)
	remote := ackSentTime.Sub(msgRecTime)
	if remote < 0 || remote > total {
		remote = 0
	}
	return float64((total - remote).Microseconds()) / 1000.0, nil
}

// UnixMilliToTime converts a Unix timestamp in milliseconds to a time.Time object
func UnixMilliToTime(unixMilli int64) time.Time {
	return time.Unix(unixMilli/1000, (unixMilli%1000)*int64(time.Millisecond))
}

// ParseBuckets parses a comma-separated string of bucket values into a slice of float64
func ParseBuckets(env string) []float64 {
	if env == "" {
		return nil
	}
	parts := strings.Split(env, ",")
	var buckets []float64
	for _, p := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			buckets = append(buckets, f)
		} else {
			log.Printf("Error parsing bucket value '%s': %v\n", p, err)
			return nil
		}
	}
	return buckets
}

// GetIoU calculates the Intersection over Union (IoU) of two boxes.
// Returns 0.0 if either box is empty or if they do not overlap.
// Min is the top left corner, Max the (exclusive) bottom right corner.
func GetIoU(bb1, bb2 image.Rectangle) float64 {
	if bb1.Empty() || bb2.Empty() {
		return 0.0
	}
	inter := bb1.Intersect(bb2)
	if inter.Empty() {
		return 0.0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	unionArea := float64(bb1.Dx()*bb1.Dy()+bb2.Dx()*bb2.Dy()) - interArea
	iou := interArea / unionArea
	if iou >= 0.0 && iou <= 1.0 {
		return iou
	}
	return 0.0
}

// GrpcClient holds the current matcher client; it is swapped by
// MonitorConnection whenever the connection is rebuilt.
type GrpcClient struct {
	v atomic.Value

	// Observer, when set, is attached to every client MonitorConnection builds
	Observer rpc.CallObserver
}

func (c *GrpcClient) Load() *rpc.MatcherClient {
	if cl, ok := c.v.Load().(*rpc.MatcherClient); ok {
		return cl
	}
	return nil
}

func (c *GrpcClient) Store(cl *rpc.MatcherClient) {
	c.v.Store(cl)
}

// MonitorConnection keeps clientRef pointed at a ready connection to
// targetSvc until ctx is done.
func MonitorConnection(ctx context.Context, targetSvc api.Service, clientRef *GrpcClient, interval time.Duration) {
	var conn *grpc.ClientConn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		if err := targetSvc.ServiceReachable(); err != nil {
			if conn != nil {
				conn.Close()
				conn = nil
			}
			log.Printf("Target service [%s:%s] is not reachable: %v", targetSvc.Address, targetSvc.Port, err)
		} else if conn == nil || conn.GetState() == connectivity.Shutdown || conn.GetState() == connectivity.TransientFailure {
			if conn != nil {
				conn.Close()
			}
			opts := append(rpc.DialOptions(), grpc.WithTransportCredentials(insecure.NewCredentials()))
			newConn, err := grpc.NewClient(targetSvc.Target(), opts...)
			if err != nil {
				log.Println("Failed to connect:", err)
				conn = nil
			} else {
				conn = newConn
				clientRef.Store(rpc.NewMatcherClient(conn).WithObserver(clientRef.Observer))
				log.Println("gRPC client connected and stored")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
