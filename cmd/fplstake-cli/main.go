package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"fplstake/crypto"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("FPLSTAKE_RPC_TOKEN")

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("FPLSTAKE_RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645"
}

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey()
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "stake":
		if len(args) < 4 {
			fmt.Println("Error: Please provide an amount, a lock duration and a key file.")
			printUsage()
			return
		}
		lock, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid lock duration.")
			return
		}
		createStake(args[1], lock, args[3])
	case "unstake":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a sequence number and a key file.")
			printUsage()
			return
		}
		sequence, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid sequence number.")
			return
		}
		unstake(sequence, args[2])
	case "stakes":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		listStakes(args[1])
	case "register":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an FPL identifier and a key file.")
			printUsage()
			return
		}
		registerProfile(args[1], args[2])
	case "profile":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getProfile(args[1])
	case "rules":
		getRules()
	case "treasury":
		getTreasury()
	case "season":
		getSeason()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: fplstake-cli [--rpc <url>] <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  generate-key                          Generate a new wallet key")
	fmt.Println("  balance <address>                     Show the spendable balance")
	fmt.Println("  stake <amount> <lock> <key_file>      Open a stake for the given lock duration")
	fmt.Println("  unstake <sequence> <key_file>         Close a stake by sequence number")
	fmt.Println("  stakes <address>                      List an owner's stake history")
	fmt.Println("  register <fpl_id> <key_file>          Register an FPL profile")
	fmt.Println("  profile <address>                     Show a registered profile")
	fmt.Println("  rules                                 Show the active staking rules")
	fmt.Println("  treasury                              Show the treasury record")
	fmt.Println("  season                                Show the season configuration")
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
}

func loadPrivateKey(path string) (*crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("private key file %s not found. run fplstake-cli generate-key first", path)
		}
		return nil, fmt.Errorf("failed to read private key file %s: %w", path, err)
	}
	return crypto.PrivateKeyFromBytes(keyBytes)
}

func createStake(amount string, lockDuration uint64, keyFile string) {
	privKey, err := loadPrivateKey(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	result, err := rpcCall("stake_create", map[string]interface{}{
		"caller":       privKey.PubKey().Address().String(),
		"amount":       amount,
		"lockDuration": lockDuration,
	}, true)
	if err != nil {
		fmt.Printf("Error creating stake: %v\n", err)
		return
	}
	printJSON(result)
}

func unstake(sequence uint64, keyFile string) {
	privKey, err := loadPrivateKey(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	result, err := rpcCall("stake_unstake", map[string]interface{}{
		"caller":   privKey.PubKey().Address().String(),
		"sequence": sequence,
	}, true)
	if err != nil {
		fmt.Printf("Error closing stake: %v\n", err)
		return
	}
	printJSON(result)
}

func listStakes(addr string) {
	result, err := rpcCall("stake_list", map[string]interface{}{"owner": addr}, false)
	if err != nil {
		fmt.Printf("Error listing stakes: %v\n", err)
		return
	}
	printJSON(result)
}

func getBalance(addr string) {
	result, err := rpcCall("bank_balance", map[string]interface{}{"address": addr}, false)
	if err != nil {
		fmt.Printf("Error fetching balance: %v\n", err)
		return
	}
	printJSON(result)
}

func registerProfile(fplID, keyFile string) {
	privKey, err := loadPrivateKey(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	result, err := rpcCall("fpl_register", map[string]interface{}{
		"caller": privKey.PubKey().Address().String(),
		"fplId":  fplID,
	}, true)
	if err != nil {
		fmt.Printf("Error registering profile: %v\n", err)
		return
	}
	printJSON(result)
}

func getProfile(addr string) {
	result, err := rpcCall("fpl_get", map[string]interface{}{"authority": addr}, false)
	if err != nil {
		fmt.Printf("Error fetching profile: %v\n", err)
		return
	}
	printJSON(result)
}

func getRules() {
	result, err := rpcCall("stake_getConfig", nil, false)
	if err != nil {
		fmt.Printf("Error fetching rules: %v\n", err)
		return
	}
	printJSON(result)
}

func getTreasury() {
	result, err := rpcCall("stake_treasury", nil, false)
	if err != nil {
		fmt.Printf("Error fetching treasury: %v\n", err)
		return
	}
	printJSON(result)
}

func getSeason() {
	result, err := rpcCall("fpl_global", nil, false)
	if err != nil {
		fmt.Printf("Error fetching season state: %v\n", err)
		return
	}
	printJSON(result)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func rpcCall(method string, params map[string]interface{}, requireAuth bool) (json.RawMessage, error) {
	request := rpcRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if params != nil {
		request.Params = []interface{}{params}
	} else {
		request.Params = []interface{}{}
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("this call mutates state and requires FPLSTAKE_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("invalid RPC response: %s", strings.TrimSpace(string(body)))
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return decoded.Result, nil
}

func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
