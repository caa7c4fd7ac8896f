package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/channel"
	"github.com/nfrund/relay/internal/client"
	"github.com/nfrund/relay/internal/wire"
)

var (
	listenChannel string
	listenTopic   string
	listenJSON    bool
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect to a channel and print every message it dispatches",
	Long: `Connect to a channel on a running relay server and print each message the
server pushes, until interrupted.

By default the command subscribes to the "#" wildcard and therefore sees every
topic on the channel, including the locally synthesized connect and disconnect
messages. A --topic flag narrows the subscription to a single topic.

Examples:
  relay-cli listen                              # Everything on the root channel
  relay-cli listen --channel /game              # Everything on /game
  relay-cli listen --topic chat.message         # One topic only
  relay-cli listen --json                       # One JSON object per line`,
	Run: listenHandler,
}

func listenHandler(cmd *cobra.Command, args []string) {
	c, err := client.New(serverURL, listenChannel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	c.On(listenTopic, func(msg wire.Message, _ channel.Conn) {
		if listenJSON {
			raw, err := wire.Encode(msg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Failed to encode message: %v\n", err)
				return
			}
			fmt.Println(string(raw))
			return
		}
		fmt.Printf("[%s] %v\n", msg.Topic, msg.Fields)
	})

	if err := c.Connect(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&listenChannel, "channel", "c", "/", "Channel endpoint path to connect to")
	listenCmd.Flags().StringVarP(&listenTopic, "topic", "t", wire.Wildcard, "Topic to subscribe to (default: all topics)")
	listenCmd.Flags().BoolVarP(&listenJSON, "json", "j", false, "Print messages as JSON, one per line")
}
