package api

import (
	"fmt"
	"net"
	"time"
)

type Service struct {
	Address string
	Port    string
}

// Target returns the dial address of the service.
func (s *Service) Target() string {
	return net.JoinHostPort(s.Address, s.Port)
}

func (s *Service) ServiceReachable() error {
	if s.Address == "" || s.Port == "" {
		return fmt.Errorf("service address or port is not set")
	}
	conn, err := net.DialTimeout("tcp", s.Target(), 3*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	return nil
}
