package blockchain

const diceGameABI = `[
  {"inputs":[],"name":"createGameETH","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"createGameUSDC","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"gameId","type":"uint256"}],"name":"joinGame","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"gameId","type":"uint256"}],"name":"refund","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"games","outputs":[
    {"internalType":"address","name":"player1","type":"address"},
    {"internalType":"address","name":"player2","type":"address"},
    {"internalType":"address","name":"token","type":"address"},
    {"internalType":"uint256","name":"stake","type":"uint256"},
    {"internalType":"uint256","name":"startTime","type":"uint256"},
    {"internalType":"bool","name":"isActive","type":"bool"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"nextGameId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const erc20ABI = `[
  {"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`
