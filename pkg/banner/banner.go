package banner

import (
	"fmt"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗ ██████╗ ██████╗ ██████╗ ███████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗██╔════╝
██║     ███████║███████║   ██║   ██║     ██║   ██║██████╔╝█████╗
██║     ██╔══██║██╔══██║   ██║   ██║     ██║   ██║██╔══██╗██╔══╝
╚██████╗██║  ██║██║  ██║   ██║   ╚██████╗╚██████╔╝██║  ██║███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚══════╝
`

// Print writes the startup banner with runtime info and a short endpoint
// reference to stdout.
func Print(addr, dbPath, responder, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", addr)
	fmt.Printf("DB Path:   %s\n", dbPath)
	fmt.Printf("Responder: %s\n", responder)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/conversations                    - Create a conversation")
	fmt.Println("GET  /v1/conversations?q=<query>          - List conversation summaries")
	fmt.Println("POST /v1/conversations/{id}/messages      - Send a message (turn)")
	fmt.Println("GET  /v1/conversations/{id}/messages      - List messages (&grouped=1)")
	fmt.Println("POST /v1/conversations/{id}/read          - Mark conversation read")
	fmt.Println("GET  /v1/profiles                         - List profiles")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -H 'X-User-ID: demo-user-id' 'http://localhost%s/v1/conversations'\n", addr)
	fmt.Printf("curl -X POST -H 'X-User-ID: demo-user-id' 'http://localhost%s/v1/conversations/conv-1/messages?wait=1' -d '{\"content\":\"hello\"}'\n", addr)
}
