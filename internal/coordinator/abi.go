package coordinator

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const coordinatorABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "requester", "type": "address"},
      {"indexed": true, "internalType": "bytes32", "name": "pubKeyHash", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "round", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "callbackGasLimit", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "feePaid", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "effectiveFeePerGas", "type": "uint256"}
    ],
    "name": "RandomnessRequested",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "randomness", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "callbackSuccess", "type": "bool"},
      {"indexed": false, "internalType": "uint256", "name": "actualGasUsed", "type": "uint256"}
    ],
    "name": "RandomnessFulfilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "requestId", "type": "uint256"},
      {"indexed": false, "internalType": "bytes32", "name": "retdata", "type": "bytes32"},
      {"indexed": false, "internalType": "uint256", "name": "gasLimit", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "actualGasUsed", "type": "uint256"}
    ],
    "name": "RandomnessCallbackFailed",
    "type": "event"
  }
]`

var (
	coordinatorABI     abi.ABI
	coordinatorABIOnce sync.Once
	coordinatorABIErr  error
)

// CoordinatorABI returns the parsed coordinator event ABI.
func CoordinatorABI() (abi.ABI, error) {
	coordinatorABIOnce.Do(func() {
		coordinatorABI, coordinatorABIErr = abi.JSON(strings.NewReader(coordinatorABIJSON))
	})
	return coordinatorABI, coordinatorABIErr
}
