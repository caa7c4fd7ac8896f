package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/client"
)

var sendChannel string

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <topic> [fields-json]",
	Short: "Connect to a channel and send a single message",
	Long: `Connect to a channel on a running relay server, send one message, and
disconnect.

The first argument is the topic; the optional second argument is a JSON object
whose keys become the message's payload fields. The topic is stamped onto the
payload by the client, so the JSON must not carry its own "topic" key.

Examples:
  relay-cli send chat.message '{"content":"hello"}'
  relay-cli send game.start --channel /game
  relay-cli send ping`,
	Args: cobra.RangeArgs(1, 2),
	Run:  sendHandler,
}

func sendHandler(cmd *cobra.Command, args []string) {
	topic := args[0]

	var fields map[string]any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid fields JSON: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := client.New(serverURL, sendChannel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	if err := c.Send(topic, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to send: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendChannel, "channel", "c", "/", "Channel endpoint path to connect to")
}
