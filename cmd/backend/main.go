package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Stub backend instance. Run one per service replica, e.g.:
//
//	backend -port :8001 -service light -delay 100ms
//	backend -port :8002 -service heavy -delay 2s
func main() {
	port := flag.String("port", ":8001", "listen address")
	service := flag.String("service", "light", "service name to report")
	delay := flag.Duration("delay", 100*time.Millisecond, "artificial processing delay")
	flag.Parse()

	message := "Quick response"
	if *service == "heavy" {
		message = "Slow response"
	}

	r := gin.Default()
	r.GET("/data", func(c *gin.Context) {
		time.Sleep(*delay)
		c.JSON(http.StatusOK, gin.H{
			"service": *service,
			"message": message,
		})
	})

	fmt.Printf("Backend %q on %s (delay %v)\n", *service, *port, *delay)
	r.Run(*port)
}
