package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/hcxworker/queueing"
)

func main() {
	fmt.Println("Starting hcxworker...")
	q := queueing.StartQue(conf.GetEnv("QUEUE_DATABASE_URL"), conf.GetEnvInt("WORKER_POOL_SIZE", 2))

	code := waitForSig()
	q.StopQue()
	os.Exit(code)
}

func waitForSig() int {
	signalChan := make(chan os.Signal, 1)
	defer close(signalChan)

	signal.Notify(signalChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	exitChan := make(chan int)
	defer close(exitChan)

	go func() {
		for {
			s := <-signalChan
			switch s {
			case syscall.SIGINT:
				fmt.Println("interrupt")
				exitChan <- 0
			case syscall.SIGTERM:
				fmt.Println("force stop")
				exitChan <- 0
			case syscall.SIGQUIT:
				fmt.Println("stop and core dump")
				exitChan <- 0
			}
		}
	}()

	return <-exitChan
}
